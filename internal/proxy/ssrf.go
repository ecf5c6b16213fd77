package proxy

import (
	"net"
	"net/url"

	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

// metadataServiceHost is the well-known cloud-metadata address that must
// never be reachable through the proxy, regardless of allowlist
// configuration (spec §6.3).
const metadataServiceHost = "169.254.169.254"

// SSRFGuard validates an upstream_base_url against spec §6.3's policy
// before the proxy opens any connection to it: https-only outside dev
// mode, no loopback/link-local/RFC1918 destination, optional host-suffix
// allowlist.
type SSRFGuard struct {
	devMode         bool
	allowedSuffixes []string
	resolver        func(host string) ([]net.IP, error)
}

// NewSSRFGuard builds a Guard. allowedSuffixes, if non-empty, restricts
// upstream hosts to those ending in one of the given suffixes (e.g.
// "api.openai.com", ".internal.example.com").
func NewSSRFGuard(devMode bool, allowedSuffixes []string) *SSRFGuard {
	return &SSRFGuard{
		devMode:         devMode,
		allowedSuffixes: allowedSuffixes,
		resolver:        net.LookupIP,
	}
}

// CheckURL validates rawURL per §6.3, failing closed on any ambiguity
// (unparsable URL, unresolvable host) rather than letting the request
// proceed.
func (g *SSRFGuard) CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ctxerr.New("proxy", "SSRFGuard.CheckURL", ctxerr.ErrInvalidRequest).WithDetails(map[string]any{
			"upstream_base_url": rawURL, "reason": "unparsable",
		})
	}

	if !g.devMode && u.Scheme != "https" {
		return ctxerr.New("proxy", "SSRFGuard.CheckURL", ctxerr.ErrInvalidRequest).WithDetails(map[string]any{
			"upstream_base_url": rawURL, "reason": "scheme must be https outside dev_mode",
		})
	}

	host := u.Hostname()
	if host == "" {
		return ctxerr.New("proxy", "SSRFGuard.CheckURL", ctxerr.ErrInvalidRequest).WithDetails(map[string]any{
			"upstream_base_url": rawURL, "reason": "missing host",
		})
	}

	if len(g.allowedSuffixes) > 0 && !hostAllowed(host, g.allowedSuffixes) {
		return ctxerr.New("proxy", "SSRFGuard.CheckURL", ctxerr.ErrForbidden).WithDetails(map[string]any{
			"upstream_base_url": rawURL, "reason": "host not in allowed_upstream_hosts",
		})
	}

	if host == metadataServiceHost {
		return ctxerr.New("proxy", "SSRFGuard.CheckURL", ctxerr.ErrForbidden).WithDetails(map[string]any{
			"upstream_base_url": rawURL, "reason": "metadata service address is never permitted",
		})
	}

	ips, err := g.resolveHost(host)
	if err != nil {
		return ctxerr.New("proxy", "SSRFGuard.CheckURL", ctxerr.ErrBackendUnavailable).WithDetails(map[string]any{
			"upstream_base_url": rawURL, "reason": "host did not resolve",
		})
	}
	for _, ip := range ips {
		if isDisallowedIP(ip) {
			return ctxerr.New("proxy", "SSRFGuard.CheckURL", ctxerr.ErrForbidden).WithDetails(map[string]any{
				"upstream_base_url": rawURL, "reason": "host resolves to a private/loopback/link-local address",
				"resolved_ip": ip.String(),
			})
		}
	}
	return nil
}

func (g *SSRFGuard) resolveHost(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	return g.resolver(host)
}

func hostAllowed(host string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if host == suffix || (len(host) > len(suffix) && host[len(host)-len(suffix):] == suffix) {
			return true
		}
	}
	return false
}

// isDisallowedIP reports whether ip falls in a loopback, link-local, or
// RFC1918 private range (spec §6.3).
func isDisallowedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	return ip.IsPrivate()
}
