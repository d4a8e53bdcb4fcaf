package domain

import (
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{url: "https://example.com", valid: true},
		{url: "http://www.example.com/health", valid: true},
		{url: "https://status.api.example.co.uk:8443/ping?full=1", valid: true},
		{url: "http://127.0.0.1:8080", valid: true},
		{url: "", valid: false},
		{url: "example.com", valid: false},
		{url: "ftp://example.com", valid: false},
		{url: "https://exa mple.com", valid: false},
		{url: "https://-bad.example.com", valid: false},
		{url: "https://example.com/" + strings.Repeat("a", 130), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.valid && err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.url)
			}
		})
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		svcName  string
		url      string
		expected string
	}{
		{name: "valid", svcName: "Example", url: "https://example.com", expected: ""},
		{name: "blank name", svcName: "   ", url: "https://example.com", expected: MsgInvalidName},
		{name: "bad url", svcName: "Example", url: "nope", expected: MsgInvalidURL},
		{name: "both", svcName: "", url: "", expected: MsgInvalidName + MsgInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRegistration(tt.svcName, tt.url); got != tt.expected {
				t.Errorf("ValidateRegistration() = %q, want %q", got, tt.expected)
			}
		})
	}
}
