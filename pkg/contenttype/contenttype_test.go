package contenttype

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		detected string
		want     string
		match    bool
	}{
		{"exact", "text/csv", CSV, true},
		{"charset param", "text/plain; charset=utf-8", Text, true},
		{"case", "Application/JSON", JSON, true},
		{"different type", "text/plain", CSV, false},
		{"empty detected", "", Text, false},
		{"both empty", "", "", false},
		{"malformed params", "text/plain; ;;", Text, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.detected, tt.want); got != tt.match {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.detected, tt.want, got, tt.match)
			}
		})
	}
}

func TestConstants(t *testing.T) {
	if HTML != "text/html" {
		t.Errorf("HTML = %q, want %q", HTML, "text/html")
	}
	if Unknown != Binary {
		t.Errorf("Unknown = %q, want it to equal Binary %q", Unknown, Binary)
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		detected string
		name     string
		ok       bool
	}{
		{"text/csv; charset=utf-8", "CSV", true},
		{"application/octet-stream", "Binary", true},
		{"text/html", "HTML", true},
		{"image/png", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		name, ok := Lookup(tt.detected)
		if name != tt.name || ok != tt.ok {
			t.Errorf("Lookup(%q) = %q, %v, want %q, %v", tt.detected, name, ok, tt.name, tt.ok)
		}
	}
}
