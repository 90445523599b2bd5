package utils

import (
	"regexp"
	"strings"
)

// MaskIP anonymizes middle segments of an IP address.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) > 2 {
			for i := 1; i < len(parts)-1; i++ {
				if parts[i] != "" {
					parts[i] = "*"
				}
			}
			return strings.Join(parts, ":")
		}
		return ip
	}
	parts := strings.Split(ip, ".")
	if len(parts) == 4 {
		for i := 1; i < len(parts)-1; i++ {
			parts[i] = "*"
		}
		return strings.Join(parts, ".")
	}
	return ip
}

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

var (
	mobileUA = regexp.MustCompile(`(?i)mobile|android|iphone`)
	tabletUA = regexp.MustCompile(`(?i)tablet|ipad`)
)

// DeviceClass buckets a user agent. Mobile wins over tablet, so an
// Android tablet reporting "Mobile" is treated as a phone.
func DeviceClass(ua string) string {
	switch {
	case mobileUA.MatchString(ua):
		return DeviceMobile
	case tabletUA.MatchString(ua):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// DeviceLabel is the human label of a device class.
func DeviceLabel(class string) string {
	switch class {
	case DeviceMobile:
		return "Mobile Device"
	case DeviceTablet:
		return "Tablet"
	default:
		return "Desktop/Laptop"
	}
}

// TrimUA shortens a user agent to fit a presence record.
func TrimUA(ua string) string {
	ua = strings.TrimSpace(ua)
	if len(ua) > 255 {
		return ua[:255]
	}
	return ua
}
