package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	applog "creditledger/internal/log"
)

const maxURLLength = 2048

// rule flags one kind of hostile request. Rules are evaluated in order and the
// first match names the request.
type rule struct {
	name  string
	match func(r *http.Request) bool
}

var probeFragments = []string{
	"../", "..\\", "%2e%2e", ".env", ".git", ".ssh", "wp-admin", "wp-login",
	"phpmyadmin", ".php", "etc/passwd", "cmd.exe", "<script", "javascript:",
	"union select", "eval(",
}

var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "nuclei",
}

var rules = []rule{
	{name: "probe_path", match: func(r *http.Request) bool {
		return containsAny(strings.ToLower(r.URL.Path), probeFragments)
	}},
	{name: "probe_query", match: func(r *http.Request) bool {
		return containsAny(strings.ToLower(r.URL.RawQuery), probeFragments)
	}},
	{name: "scanner_agent", match: func(r *http.Request) bool {
		return containsAny(strings.ToLower(r.UserAgent()), scannerAgents)
	}},
	{name: "debug_method", match: func(r *http.Request) bool {
		switch r.Method {
		case "TRACE", "TRACK", "DEBUG", http.MethodConnect:
			return true
		}
		return false
	}},
	{name: "oversized_url", match: func(r *http.Request) bool {
		return len(r.URL.RequestURI()) > maxURLLength
	}},
	{name: "forwarded_chain", match: func(r *http.Request) bool {
		return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5
	}},
}

func containsAny(s string, fragments []string) bool {
	if s == "" {
		return false
	}
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// Detector flags hostile-looking requests and resolves the client address
// behind trusted proxies. It never blocks: the auth gate and the router
// decide what a flagged request gets.
type Detector struct {
	mu      sync.RWMutex
	proxies []*net.IPNet
	hits    map[string]*atomic.Int64
}

// NewDetector trusts loopback and the RFC 1918 ranges as reverse proxies.
func NewDetector() *Detector {
	d := &Detector{hits: make(map[string]*atomic.Int64, len(rules))}
	for _, rl := range rules {
		d.hits[rl.name] = new(atomic.Int64)
	}
	for _, cidr := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"} {
		if err := d.AddTrustedProxy(cidr); err != nil {
			panic(err)
		}
	}
	return d
}

// AddTrustedProxy extends the set of networks whose forwarding headers are honoured.
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
	}
	d.mu.Lock()
	d.proxies = append(d.proxies, network)
	d.mu.Unlock()
	return nil
}

// Classify returns the name of the first rule the request trips, or "".
func (d *Detector) Classify(r *http.Request) string {
	for _, rl := range rules {
		if rl.match(r) {
			d.hits[rl.name].Add(1)
			return rl.name
		}
	}
	return ""
}

// DetectSuspiciousRequest reports whether any rule matches.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	return d.Classify(r) != ""
}

// Hits returns how often each rule has fired since start.
func (d *Detector) Hits() map[string]int64 {
	out := make(map[string]int64, len(d.hits))
	for name, n := range d.hits {
		out[name] = n.Load()
	}
	return out
}

// ExtractClientIP returns the peer address, or the nearest untrusted hop of
// X-Forwarded-For (then X-Real-IP) when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !d.trusted(ip) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := net.ParseIP(strings.TrimSpace(hops[i]))
			if hop == nil {
				break
			}
			if !d.trusted(hop) || i == 0 {
				return hop.String()
			}
		}
	}
	if xri := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); xri != nil {
		return xri.String()
	}
	return peer
}

func (d *Detector) trusted(ip net.IP) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, network := range d.proxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware logs flagged requests on the request logger and passes them on.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := d.Classify(r); name != "" {
			logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity)
			logger.WarnContext(r.Context(), "Suspicious request",
				"rule", name,
				applog.FieldClientIP, d.ExtractClientIP(r),
				"user_agent", r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}
