package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProxyMatcher(t *testing.T) {
	m := newProxyMatcher([]string{"10.0.0.1", "192.168.0.0/16", "bogus"}, discardLogger())
	if m == nil {
		t.Fatal("matcher is nil")
	}

	tests := []struct {
		addr    string
		trusted bool
	}{
		{"10.0.0.1", true},
		{"10.0.0.2", false},
		{"192.168.3.4", true},
		{"192.169.0.1", false},
	}
	for _, tt := range tests {
		if got := m.IsTrusted(netip.MustParseAddr(tt.addr)); got != tt.trusted {
			t.Errorf("IsTrusted(%s) = %v, want %v", tt.addr, got, tt.trusted)
		}
	}

	if newProxyMatcher(nil, discardLogger()) != nil {
		t.Error("empty entry list should give a nil matcher")
	}
	var nilMatcher *proxyMatcher
	if nilMatcher.IsTrusted(netip.MustParseAddr("10.0.0.1")) {
		t.Error("nil matcher trusts nobody")
	}
}

func TestClientAddrFromRequest(t *testing.T) {
	trusted := newProxyMatcher([]string{"10.0.0.1"}, discardLogger())

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
		wantErr    error
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.9:51000",
			want:       "203.0.113.9",
		},
		{
			name:       "direct connection ignores headers",
			remoteAddr: "203.0.113.9:51000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "trusted proxy with X-Real-IP",
			remoteAddr: "10.0.0.1:40000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.1"},
			want:       "198.51.100.1",
		},
		{
			name:       "trusted proxy with forwarded chain",
			remoteAddr: "10.0.0.1:40000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"},
			want:       "198.51.100.1",
		},
		{
			name:       "trusted proxy without forwarded address",
			remoteAddr: "10.0.0.1:40000",
			wantErr:    ErrNoForwardedAddr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			addr, err := clientAddrFromRequest(r, trusted)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if addr != netip.MustParseAddr(tt.want) {
				t.Errorf("addr = %s, want %s", addr, tt.want)
			}
		})
	}
}

func TestParseForwardedAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"198.51.100.1", "198.51.100.1"},
		{" 198.51.100.1 ", "198.51.100.1"},
		{"198.51.100.1:1234", "198.51.100.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"fe80::1%eth0", "fe80::1"},
	}
	for _, tt := range tests {
		addr, err := parseForwardedAddr(tt.in)
		if err != nil {
			t.Errorf("parseForwardedAddr(%q) error: %v", tt.in, err)
			continue
		}
		if addr != netip.MustParseAddr(tt.want) {
			t.Errorf("parseForwardedAddr(%q) = %s, want %s", tt.in, addr, tt.want)
		}
	}

	if _, err := parseForwardedAddr("unknown"); err == nil {
		t.Error("expected error for garbage input")
	}
}
