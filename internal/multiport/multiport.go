// Package multiport parses a "host:port" or "host:minport-maxport" listen
// address, letting a server spread the KCP transport across a range of
// UDP ports instead of a single one.
package multiport

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var addrPattern = regexp.MustCompile(`(.*):([0-9]{1,5})-?([0-9]{1,5})?`)

// Range is a host plus an inclusive port range (MinPort == MaxPort for a
// single port).
type Range struct {
	Host    string
	MinPort int
	MaxPort int
}

// Parse decodes addr into a Range.
func Parse(addr string) (*Range, error) {
	m := addrPattern.FindStringSubmatch(addr)
	if len(m) < 4 {
		return nil, errors.Errorf("malformed listen address: %v", addr)
	}

	minPort, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, err
	}
	maxPort := minPort
	if m[3] != "" {
		maxPort, err = strconv.Atoi(m[3])
		if err != nil {
			return nil, err
		}
	}

	if minPort == 0 || maxPort == 0 || minPort > maxPort || maxPort > 65535 {
		return nil, errors.Errorf("invalid port range: %d-%d", minPort, maxPort)
	}

	return &Range{Host: m[1], MinPort: minPort, MaxPort: maxPort}, nil
}
