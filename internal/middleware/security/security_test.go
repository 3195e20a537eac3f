package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		xff    string
		want   string
	}{
		{name: "normal api call", method: http.MethodGet, target: "/api/credits?month=6&year=2025", ua: "curl/8.0"},
		{name: "path traversal", method: http.MethodGet, target: "/api/../../etc/passwd", want: "probe_path"},
		{name: "dotenv probe", method: http.MethodGet, target: "/.env", want: "probe_path"},
		{name: "traversal in query", method: http.MethodGet, target: "/api/credits?file=../secret", want: "probe_query"},
		{name: "scanner agent", method: http.MethodGet, target: "/", ua: "sqlmap/1.7", want: "scanner_agent"},
		{name: "trace method", method: "TRACE", target: "/", want: "debug_method"},
		{name: "oversized url", method: http.MethodGet, target: "/api/credits?q=" + strings.Repeat("a", maxURLLength), want: "oversized_url"},
		{name: "long forwarding chain", method: http.MethodGet, target: "/", xff: "1.1.1.1,2.2.2.2,3.3.3.3,4.4.4.4,5.5.5.5,6.6.6.6,7.7.7.7", want: "forwarded_chain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.ua != "" {
				r.Header.Set("User-Agent", tt.ua)
			}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.Classify(r); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
			if got := d.DetectSuspiciousRequest(r); got != (tt.want != "") {
				t.Errorf("DetectSuspiciousRequest() = %v", got)
			}
		})
	}
}

func TestHitsCountPerRule(t *testing.T) {
	d := NewDetector()
	for i := 0; i < 3; i++ {
		d.Classify(httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	}
	d.Classify(httptest.NewRequest(http.MethodGet, "/api/credits", nil))

	hits := d.Hits()
	if hits["probe_path"] != 3 {
		t.Errorf("probe_path hits = %d, want 3", hits["probe_path"])
	}
	if hits["scanner_agent"] != 0 {
		t.Errorf("scanner_agent hits = %d, want 0", hits["scanner_agent"])
	}
}

func TestMiddlewarePassesFlaggedRequests(t *testing.T) {
	called := false
	h := NewDetector().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/", nil))
	if !called || rec.Code != http.StatusNotFound {
		t.Fatalf("called=%v code=%d", called, rec.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{name: "direct", remote: "203.0.113.7:5000", want: "203.0.113.7"},
		{name: "untrusted proxy ignored", remote: "203.0.113.7:5000", xff: "198.51.100.1", want: "203.0.113.7"},
		{name: "trusted proxy xff", remote: "10.0.0.2:5000", xff: "198.51.100.1, 10.0.0.2", want: "198.51.100.1"},
		{name: "trusted proxy x-real-ip", remote: "127.0.0.1:5000", xri: "198.51.100.9", want: "198.51.100.9"},
		{name: "nearest untrusted hop wins", remote: "10.0.0.2:5000", xff: "203.0.113.50, 198.51.100.1, 192.168.1.4", want: "198.51.100.1"},
		{name: "all hops trusted", remote: "10.0.0.2:5000", xff: "10.0.0.9, 10.0.0.3", want: "10.0.0.9"},
		{name: "garbage xff", remote: "127.0.0.1:5000", xff: "not-an-ip", want: "127.0.0.1"},
		{name: "garbage xff falls back to x-real-ip", remote: "127.0.0.1:5000", xff: "nope", xri: "198.51.100.9", want: "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := NewDetector().ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Fatal("expected error")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatalf("add: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(r); got != "198.51.100.1" {
		t.Errorf("got %q", got)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/credits", nil))
	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Cache-Control"} {
		if rec.Header().Get(name) == "" {
			t.Errorf("missing %s", name)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must only be sent over TLS")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}
