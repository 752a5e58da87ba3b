package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	ua "github.com/mssola/user_agent"
)

// ClientInfo describes the caller of a request, for audit entries
type ClientInfo struct {
	IP         string `json:"ip"`
	UserAgent  string `json:"user_agent"`
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, bot, unknown
	Platform   string `json:"platform"`    // android, ios, windows, mac, linux, chromeos, unknown
}

// ClientInfoFromRequest extracts the client IP and device details from a request
func ClientInfoFromRequest(c *gin.Context) ClientInfo {
	userAgent := c.Request.UserAgent()
	deviceType, platform := ParseDevice(userAgent)
	return ClientInfo{
		IP:         GetRealIP(c),
		UserAgent:  userAgent,
		DeviceType: deviceType,
		Platform:   platform,
	}
}

// GetRealIP returns the client address. X-Real-IP wins when it is public,
// then the first public address in X-Forwarded-For, then gin's ClientIP.
func GetRealIP(c *gin.Context) string {
	if realIP := strings.TrimSpace(c.Request.Header.Get("X-Real-IP")); realIP != "" {
		if ip := net.ParseIP(realIP); ip != nil && !ip.IsPrivate() {
			return realIP
		}
	}

	if forwarded := c.Request.Header.Get("X-Forwarded-For"); forwarded != "" {
		var firstValid string
		for _, part := range strings.Split(forwarded, ",") {
			candidate := strings.TrimSpace(part)
			ip := net.ParseIP(candidate)
			if ip == nil {
				continue
			}
			if firstValid == "" {
				firstValid = candidate
			}
			if !ip.IsPrivate() && !ip.IsLoopback() {
				return candidate
			}
		}
		if firstValid != "" {
			return firstValid
		}
	}

	return c.ClientIP()
}

var tabletIndicators = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "xoom", "sm-t"}

var platforms = []struct {
	marker   string
	platform string
}{
	{"android", "android"},
	{"iphone", "ios"},
	{"ipad", "ios"},
	{"ipod", "ios"},
	{"ios", "ios"},
	{"chrome os", "chromeos"},
	{"cros", "chromeos"},
	{"windows", "windows"},
	{"mac os x", "mac"},
	{"macos", "mac"},
	{"ubuntu", "linux"},
	{"linux", "linux"},
}

// ParseDevice classifies a User-Agent string into a device type and platform
func ParseDevice(userAgent string) (deviceType, platform string) {
	if userAgent == "" {
		return "unknown", "unknown"
	}

	parser := ua.New(userAgent)

	if parser.Bot() {
		return "bot", "unknown"
	}

	deviceType = "desktop"
	if parser.Mobile() {
		deviceType = "mobile"
		lower := strings.ToLower(userAgent)
		for _, indicator := range tabletIndicators {
			if strings.Contains(lower, indicator) {
				deviceType = "tablet"
				break
			}
		}
	}

	// iOS reports its OS name as "OS"; the platform token disambiguates
	osName := strings.ToLower(parser.OSInfo().Name + " " + parser.Platform())
	platform = "unknown"
	for _, p := range platforms {
		if strings.Contains(osName, p.marker) {
			platform = p.platform
			break
		}
	}

	return deviceType, platform
}
