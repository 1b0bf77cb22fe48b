package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_RemoteAddrFallback(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:51234"

	assert.Equal(t, "203.0.113.9", ExtractClientIP(req, nil))
}

func TestExtractClientIP_IgnoresHeadersFromUntrustedSource(t *testing.T) {
	// A client talking to us directly must not be able to pick its own IP;
	// the lockout audit trail depends on it.
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	req.Header.Set("X-Real-IP", "198.51.100.7")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	assert.Equal(t, "203.0.113.9", ExtractClientIP(req, config))
}

func TestExtractClientIP_HonorsForwardedForFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:40000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.5")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	assert.Equal(t, "198.51.100.7", ExtractClientIP(req, config))
}

func TestExtractClientIP_SkipsInvalidForwardedEntries(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:40000"
	req.Header.Set("X-Forwarded-For", "not-an-ip, 198.51.100.7")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	assert.Equal(t, "198.51.100.7", ExtractClientIP(req, config))
}

func TestExtractClientIP_RealIPHeaderFromTrustedProxy(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:40000"
	req.Header.Set("X-Real-IP", "198.51.100.7")

	config := &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	assert.Equal(t, "198.51.100.7", ExtractClientIP(req, config))
}
