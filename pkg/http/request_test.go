package http_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	pkghttp "github.com/pslattery/gatehouse/pkg/http"
)

// Forwarding headers feed the per-IP rate limiter and the session audit
// trail, so they may only be honored when the peer is a configured proxy.

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		forwardedFor   string
		realIP         string
		trustedProxies []string
		want           string
	}{
		{
			name:           "direct connection ignores forwarding headers",
			remoteAddr:     "198.51.100.7:42100",
			forwardedFor:   "203.0.113.99, 203.0.113.100",
			realIP:         "192.168.1.1",
			trustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "127.0.0.1/32"},
			want:           "198.51.100.7",
		},
		{
			name:           "trusted proxy forwards the client address",
			remoteAddr:     "10.1.2.3:42100",
			forwardedFor:   "198.51.100.7, 10.1.2.3",
			realIP:         "198.51.100.7",
			trustedProxies: []string{"10.0.0.0/8", "127.0.0.1/32"},
			want:           "198.51.100.7",
		},
		{
			name:           "IPv6 proxy chain",
			remoteAddr:     "[::1]:42100",
			forwardedFor:   "2001:db8::9",
			trustedProxies: []string{"::1/128", "2001:db8::/32"},
			want:           "2001:db8::9",
		},
		{
			name:           "empty proxy list never trusts headers",
			remoteAddr:     "198.51.100.7:42100",
			forwardedFor:   "203.0.113.99",
			trustedProxies: []string{},
			want:           "198.51.100.7",
		},
		{
			name:           "unparseable CIDR entries fall back to the peer address",
			remoteAddr:     "198.51.100.7:42100",
			forwardedFor:   "203.0.113.99",
			trustedProxies: []string{"not-a-cidr", "10.0.0/99"},
			want:           "198.51.100.7",
		},
		{
			name:           "first hop of the chain is the client",
			remoteAddr:     "10.1.2.3:42100",
			forwardedFor:   "198.51.100.7, 203.0.113.50, 10.1.2.3",
			trustedProxies: []string{"10.0.0.0/8"},
			want:           "198.51.100.7",
		},
		{
			name:           "port is stripped from the peer address",
			remoteAddr:     "198.51.100.7:42100",
			trustedProxies: []string{},
			want:           "198.51.100.7",
		},
		{
			name:         "claiming to be localhost does not evade the limiter",
			remoteAddr:   "198.51.100.7:42100",
			forwardedFor: "127.0.0.1, 198.51.100.7",
			// Only the internal network is trusted, so the header is noise
			trustedProxies: []string{"10.0.0.0/8"},
			want:           "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/auth/login", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.forwardedFor)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			ip := pkghttp.ExtractClientIP(req, &pkghttp.IPConfig{TrustedProxies: tt.trustedProxies})

			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestExtractClientIP_NilConfig(t *testing.T) {
	req := httptest.NewRequest("GET", "/auth/login", nil)
	req.RemoteAddr = "198.51.100.7:42100"
	req.Header.Set("X-Forwarded-For", "203.0.113.99")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	ip := pkghttp.ExtractClientIP(req, nil)

	assert.Equal(t, "198.51.100.7", ip, "without configuration only the peer address counts")
}
