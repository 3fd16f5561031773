package devices

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const validateTimeout = 2 * time.Second

// IsValidIPv4 reports whether s is a literal IPv4 address.
func IsValidIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// ValidateDevice asks the instrument's HTTP admin endpoint for its
// device type and checks it against the expected one. IC256 variants
// report names like IC256-42/35, so a prefix match is used there.
func ValidateDevice(ip, devType string) bool {
	if !IsValidIPv4(ip) {
		return false
	}
	return probeDeviceType(ip, devType)
}

func probeDeviceType(host, devType string) bool {
	client := http.Client{Timeout: validateTimeout}
	resp, err := client.Get(fmt.Sprintf("http://%s%s", host, DeviceTypePath))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var reported string
	if err := json.NewDecoder(resp.Body).Decode(&reported); err != nil {
		return false
	}
	if devType == "IC256" {
		return strings.HasPrefix(reported, "IC256")
	}
	return reported == devType
}
