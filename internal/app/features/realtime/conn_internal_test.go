package realtime

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecentIDs(t *testing.T) {
	r := newRecentIDs(2)

	assert.True(t, r.add("a"))
	assert.False(t, r.add("a"))
	assert.True(t, r.add("b"))
	assert.True(t, r.add("c")) // evicts "a"
	assert.True(t, r.add("a"))
	assert.False(t, r.add("c"))
	assert.True(t, r.add(""))
	assert.True(t, r.add(""))
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"https://app.example.com"}, "", true},
		{"empty list refuses other sites", nil, "https://evil.example", false},
		{"empty list allows this host", nil, "http://example.com", true},
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://app.example.com/"}, "https://APP.example.com", true},
		{"not listed", []string{"https://app.example.com"}, "https://evil.example", false},
		{"scheme matters", []string{"https://app.example.com"}, "http://app.example.com", false},
		{"garbage", []string{"https://app.example.com"}, "::::", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/realtime", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}
