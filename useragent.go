package authcore

import "strings"

const unknownDeviceName = "Unknown Browser on Unknown OS"

// DeviceName derives a best-effort "{browser} on {OS}" label from a raw
// User-Agent string. Display convenience only; never used for matching.
func DeviceName(userAgent string) string {
	if userAgent == "" {
		return unknownDeviceName
	}

	browser := detectBrowser(userAgent)
	os := detectOS(userAgent)
	if browser == "" && os == "" {
		return unknownDeviceName
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}

// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari".
func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"), strings.Contains(ua, "Edge/"):
		return "Edge"
	case strings.Contains(ua, "OPR/"), strings.Contains(ua, "Opera"):
		return "Opera"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Chrome/"):
		return "Chrome"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	default:
		return ""
	}
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		return "macOS"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return ""
	}
}
