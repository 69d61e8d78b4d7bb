package cmd

import "testing"

func TestParseMeetingInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"raw id", "ABC123", "ABC123", false},
		{"full url", "https://parley.chat/r/ABC123", "ABC123", false},
		{"url without scheme", "parley.chat/r/ABC123", "ABC123", false},
		{"bare host and id", "parley.chat/ABC123", "ABC123", false},
		{"trailing slash", "https://parley.chat/r/ABC123/", "ABC123", false},
		{"empty", "", "", true},
		{"url without path", "https://parley.chat", "", true},
		{"r path without id", "https://parley.chat/r/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMeetingInput(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseMeetingInput(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMeetingInput(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseMeetingInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
