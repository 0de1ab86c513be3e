package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/mileusna/useragent"
)

// DeviceInfo describes the client device extracted from a request.
type DeviceInfo struct {
	Fingerprint string
	Name        string
	Type        string
	Browser     string
	OS          string
	IPAddress   string
	UserAgent   string
}

// DeviceFromRequest derives the device identity for a request. The
// fingerprint is stable for a given (user agent, IP) pair, which is what
// makes one session per device possible.
func DeviceFromRequest(r *http.Request) DeviceInfo {
	ua := r.UserAgent()
	ip := ClientIP(r)

	parsed := useragent.Parse(ua)

	return DeviceInfo{
		Fingerprint: Fingerprint(ua, ip),
		Name:        deviceName(parsed),
		Type:        deviceType(parsed),
		Browser:     parsed.Name,
		OS:          parsed.OS,
		IPAddress:   ip,
		UserAgent:   ua,
	}
}

// Fingerprint hashes the user agent and IP into an opaque device identifier.
func Fingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + ":" + ip))
	return hex.EncodeToString(sum[:])
}

// ClientIP extracts the originating client IP, preferring proxy-set headers
// over the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if ip, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(ip)
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func deviceName(ua useragent.UserAgent) string {
	switch {
	case ua.Name != "" && ua.OS != "":
		return ua.Name + " on " + ua.OS
	case ua.Name != "":
		return ua.Name
	default:
		return "Unknown device"
	}
}

func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Mobile:
		return "mobile"
	case ua.Tablet:
		return "tablet"
	case ua.Bot:
		return "bot"
	default:
		return "desktop"
	}
}
