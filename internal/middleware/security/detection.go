package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	applog "stacksight/internal/log"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe", "pg_sleep", "information_schema",
	}
	suspiciousAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}
	unusualMethods = map[string]bool{
		"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true,
	}
)

const (
	maxURLLength     = 2048
	maxForwardedHops = 5
)

// DefaultTrustedProxies are the loopback and private ranges.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
}

// Detector handles suspicious request detection
type Detector struct {
	trustedProxies []*net.IPNet
	suspicious     atomic.Int64
}

// NewDetector trusts forwarding headers only from the given CIDRs.
func NewDetector(trustedCIDRs ...string) (*Detector, error) {
	d := &Detector{}
	for _, cidr := range trustedCIDRs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		d.trustedProxies = append(d.trustedProxies, network)
	}
	return d, nil
}

// IsSuspicious reports whether r matches a known probing pattern.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	if !d.matches(r) {
		return false
	}
	d.suspicious.Add(1)
	return true
}

func (d *Detector) matches(r *http.Request) bool {
	if unusualMethods[r.Method] {
		return true
	}
	if len(r.URL.String()) > maxURLLength {
		return true
	}

	path := strings.ToLower(r.URL.Path)
	query, err := url.QueryUnescape(r.URL.RawQuery)
	if err != nil {
		query = r.URL.RawQuery
	}
	query = strings.ToLower(query)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			return true
		}
	}

	agent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range suspiciousAgents {
		if strings.Contains(agent, a) {
			return true
		}
	}

	return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxForwardedHops
}

// Suspicious returns how many suspicious requests were seen.
func (d *Detector) Suspicious() int64 {
	return d.suspicious.Load()
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware logs suspicious requests without blocking them.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsSuspicious(r) {
			logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity)
			logger.WarnContext(r.Context(), "Suspicious request",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, d.ExtractClientIP(r),
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}
