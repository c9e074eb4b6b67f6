package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceID identifies a network element, e.g. "of:0000000000000001".
type DeviceID string

// PortNumber identifies a port on a device.
type PortNumber uint64

func (p PortNumber) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// ConnectPoint is a (device, port) attachment point. It is comparable and is
// the only identity used when deduplicating interfaces.
type ConnectPoint struct {
	Device DeviceID
	Port   PortNumber
}

// NewConnectPoint is a small convenience for tests and loaders.
func NewConnectPoint(device DeviceID, port PortNumber) ConnectPoint {
	return ConnectPoint{Device: device, Port: port}
}

// IsZero reports whether the connect point was never set.
func (cp ConnectPoint) IsZero() bool {
	return cp.Device == ""
}

// String renders "<deviceId>/<port>".
func (cp ConnectPoint) String() string {
	return string(cp.Device) + "/" + cp.Port.String()
}

// ParseConnectPoint parses "<deviceId>/<port>". Device IDs may themselves
// contain slashes, so the port is taken from the last segment.
func ParseConnectPoint(s string) (ConnectPoint, error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return ConnectPoint{}, fmt.Errorf("invalid connect point %q: want <device>/<port>", s)
	}
	port, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return ConnectPoint{}, fmt.Errorf("invalid connect point %q: bad port: %w", s, err)
	}
	return ConnectPoint{Device: DeviceID(s[:idx]), Port: PortNumber(port)}, nil
}
