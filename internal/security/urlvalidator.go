package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// Hosts serving mood placeholder images.
	placeholderHosts = []string{
		"picsum.photos",
	}

	ErrPrivateIP     = errors.New("URL resolves to private IP address")
	ErrUntrustedHost = errors.New("URL host is not trusted")
	ErrInvalidScheme = errors.New("only HTTPS URLs are allowed")

	skipValidation = false
)

// SetSkipValidation disables URL checks; tests pointing at httptest servers
// need it.
func SetSkipValidation(skip bool) {
	skipValidation = skip
}

// ValidateImageURL checks a remote image reference before it is fetched. In
// strict mode only placeholder hosts (and their subdomains) are accepted.
func ValidateImageURL(rawURL string, strict bool) error {
	if skipValidation {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	host := parsed.Hostname()
	if strict && !isPlaceholderHost(host) {
		return fmt.Errorf("%w: %s", ErrUntrustedHost, host)
	}
	return checkHostIP(host)
}

func isPlaceholderHost(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range placeholderHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func checkHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Resolution failures surface later as fetch errors.
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0:
			return true
		case ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127: // CGNAT
			return true
		case ip4[0] >= 240:
			return true
		}
	}
	return false
}
