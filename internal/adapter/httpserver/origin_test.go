package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	appURL := "https://qa.example.com/rooms"

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"empty origin", "", false, true},
		{"app origin", "https://qa.example.com", false, true},

		{"different host", "https://evil.com", false, false},
		{"different port", "https://qa.example.com:9090", false, false},
		{"http instead of https", "http://qa.example.com", false, false},
		{"subdomain", "https://sub.qa.example.com", false, false},

		{"localhost dev", "http://localhost:5173", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"ipv6 loopback dev", "http://[::1]:3000", true, true},
		{"localhost prod rejected", "http://localhost:5173", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(appURL, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/subscribe/r1", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestNewCheckOrigin_NoAppURL(t *testing.T) {
	checker := NewCheckOrigin("", false)
	r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/subscribe/r1", nil)
	r.Header.Set("Origin", "https://anything.example")
	assert.False(t, checker(r))
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://example.com/rooms", "https://example.com"},
		{"https://example.com:8443/path", "https://example.com:8443"},
		{"", ""},
		{"mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractOrigin(tt.rawURL), tt.rawURL)
	}
}
