package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/formfile/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	logLevel    string
	logJSON     bool
	debug       bool
	errorFormat string
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		format, ferr := errors.ParseOutputFormat(opts.errorFormat)
		if ferr != nil {
			format = errors.OutputText
		}
		errors.FprintAs(stderr, err, format)
		return 1
	}
	return 0
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "formfile",
		Short: "Receive and inspect multipart file uploads",
		Long: `formfile accepts multipart/form-data uploads over HTTP and stores them.

Content types are detected from file bytes, never from the client.
Upload failures are reported with PHP compatible UPLOAD_ERR codes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := errors.ParseOutputFormat(opts.errorFormat); err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), opts)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")
	flags.BoolVar(&opts.debug, "debug", false, "Shorthand for --log-level=debug (or set FORMFILE_DEBUG=true)")
	flags.StringVar(&opts.errorFormat, "error-format", "text", "Error output: text, compact or json")

	rootCmd.AddCommand(
		serveCmd(),
		inspectCmd(),
		versionCmd(),
	)

	return rootCmd
}

// newLogger builds the process logger from the log flags. --debug and
// FORMFILE_DEBUG=true override --log-level.
func newLogger(w io.Writer, opts *rootOptions) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return nil, errors.New("E124").
			WithDetail(fmt.Sprintf("--log-level: unknown level %q", opts.logLevel)).
			WithSuggestion("Use debug, info, warn or error").
			Wrap(err)
	}
	if opts.debug || os.Getenv("FORMFILE_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	if opts.logJSON {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
