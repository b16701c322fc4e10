package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Invalid formfile.json",
		Detail:   "The formfile.json configuration file is malformed.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Configuration not found",
		Detail:   "No formfile.json was found at the given location.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid size limit",
		Detail:   "Size limits must be zero (unlimited) or positive.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations use Go syntax, for example \"30s\" or \"15m\".",
	},

	// ============================================
	// CLI Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryCLI,
		Message:  "Temp directory unusable",
		Detail:   "The upload temp directory could not be created.",
	},
	"E121": {
		Category: CategoryCLI,
		Message:  "Destination directory unusable",
		Detail:   "The directory for stored uploads could not be created.",
	},
	"E122": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},
	"E123": {
		Category: CategoryCLI,
		Message:  "File unreadable",
		Detail:   "The file could not be opened for inspection.",
	},
	"E124": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
		Detail:   "A command line flag has a value the command does not accept.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
