package security

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"finplan/internal/log"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	CrossSiteRejected  int64
	HostRejected       int64
}

// Detector guards a loopback-bound web client. It rejects requests whose
// Host is not a loopback name (DNS rebinding) and state-changing requests
// whose Origin or Referer names another site (CSRF from a page in the same
// browser). Suspicious paths are only counted and logged.
type Detector struct {
	metrics      DetectionMetrics
	allowedHosts map[string]bool
	logger       *log.Logger
}

// NewDetector creates a detector that accepts the loopback names plus any
// extra hosts (without port).
func NewDetector(logger *log.Logger, extraHosts ...string) *Detector {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	hosts := map[string]bool{"localhost": true, "127.0.0.1": true, "::1": true}
	for _, h := range extraHosts {
		if h = strings.TrimSpace(strings.ToLower(h)); h != "" {
			hosts[h] = true
		}
	}
	return &Detector{
		allowedHosts: hosts,
		logger:       logger.WithComponent(log.ComponentSecurity),
	}
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"<script", "union select", "etc/passwd", "cmd.exe",
}

// DetectSuspiciousRequest reports whether the path or query looks like a probe.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	suspicious := len(r.URL.String()) > 2048
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			suspicious = true
			break
		}
	}
	if r.Method == "TRACE" || r.Method == "TRACK" || r.Method == "CONNECT" {
		suspicious = true
	}
	if suspicious {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return suspicious
}

// AllowedHost reports whether the request's Host header names this client.
func (d *Detector) AllowedHost(r *http.Request) bool {
	return d.allowedHosts[hostname(r.Host)]
}

// SameOrigin reports whether a state-changing request comes from a page
// served by this client. Safe methods always pass. When neither Origin nor
// Referer is sent the request passes, matching non-browser clients.
func (d *Detector) SameOrigin(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	source := r.Header.Get("Origin")
	if source == "" || source == "null" {
		source = r.Header.Get("Referer")
	}
	if source == "" {
		return true
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Middleware rejects disallowed hosts and cross-site writes and logs probes.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.AllowedHost(r) {
			atomic.AddInt64(&d.metrics.HostRejected, 1)
			d.logger.WarnContext(r.Context(), "Rejected request for unknown host",
				"host", r.Host, log.FieldPath, r.URL.Path)
			http.Error(w, "Misdirected request", http.StatusMisdirectedRequest)
			return
		}
		if !d.SameOrigin(r) {
			atomic.AddInt64(&d.metrics.CrossSiteRejected, 1)
			d.logger.WarnContext(r.Context(), "Rejected cross-site request",
				"origin", r.Header.Get("Origin"), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if d.DetectSuspiciousRequest(r) {
			d.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, log.FieldClientIP, ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the remote address without port. The client is
// bound to loopback and sits behind no proxy, so forwarded headers are ignored.
func ExtractClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
		CrossSiteRejected:  atomic.LoadInt64(&d.metrics.CrossSiteRejected),
		HostRejected:       atomic.LoadInt64(&d.metrics.HostRejected),
	}
}

func hostname(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}
