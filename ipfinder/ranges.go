// Package ipfinder cycles airplane mode until the device is handed a local
// IP inside one of the wanted ranges.
package ipfinder

import (
	"regexp"
	"strings"

	"github.com/yllada/ssht-client/common"
)

var localRanges = []*regexp.Regexp{
	regexp.MustCompile(`^10(\.\d{1,3}){0,3}$`),
	regexp.MustCompile(`^172\.(1[6-9]|2\d|3[0-1])(\.\d{1,3}){0,2}$`),
	regexp.MustCompile(`^192\.168(\.\d{1,3}){0,2}$`),
	regexp.MustCompile(`^100\.(6[4-9]|[7-9]\d|1[0-1]\d|12[0-7])(\.\d{1,3}){0,2}$`),
}

// IsLocal reports whether s is a private or CGNAT address or a prefix of
// one, such as "10" or "192.168.0".
func IsLocal(s string) bool {
	for _, re := range localRanges {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ParseRanges splits a comma separated list and keeps the valid ranges.
func ParseRanges(input string) []string {
	var out []string
	for _, part := range common.SplitList(input) {
		if IsLocal(part) {
			out = append(out, part)
		}
	}
	return out
}

// InRange reports whether every octet of rng matches the same octet of ip.
func InRange(ip, rng string) bool {
	ipParts := strings.Split(ip, ".")
	for i, part := range strings.Split(rng, ".") {
		if i >= len(ipParts) || ipParts[i] != part {
			return false
		}
	}
	return true
}

// InAnyRange reports whether ip is inside one of ranges.
func InAnyRange(ip string, ranges []string) bool {
	for _, r := range ranges {
		if InRange(ip, r) {
			return true
		}
	}
	return false
}
