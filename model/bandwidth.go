package model

import (
	"math"

	"github.com/dustin/go-humanize"
)

// Bandwidth is a data rate in bits per second.
type Bandwidth float64

const (
	bpsPerKbps = 1e3
	bpsPerMbps = 1e6
	bpsPerGbps = 1e9
)

// Bps returns a Bandwidth of v bits per second.
func Bps(v float64) Bandwidth { return Bandwidth(v) }

// Kbps returns a Bandwidth of v kilobits per second.
func Kbps(v float64) Bandwidth { return Bandwidth(v * bpsPerKbps) }

// Mbps returns a Bandwidth of v megabits per second.
func Mbps(v float64) Bandwidth { return Bandwidth(v * bpsPerMbps) }

// Gbps returns a Bandwidth of v gigabits per second.
func Gbps(v float64) Bandwidth { return Bandwidth(v * bpsPerGbps) }

// Bps returns the rate in bits per second.
func (b Bandwidth) Bps() float64 { return float64(b) }

// Mbps returns the rate in megabits per second.
func (b Bandwidth) Mbps() float64 { return float64(b) / bpsPerMbps }

// Add returns b+o.
func (b Bandwidth) Add(o Bandwidth) Bandwidth { return b + o }

// Sub returns b-o. The result may be negative; callers decide what that means.
func (b Bandwidth) Sub(o Bandwidth) Bandwidth { return b - o }

// LessOrEqual reports whether b <= o, tolerating float rounding at the
// sub-bit level.
func (b Bandwidth) LessOrEqual(o Bandwidth) bool {
	return float64(b) <= float64(o) || math.Abs(float64(b)-float64(o)) < 1e-6
}

// String renders the rate with SI prefixes, e.g. "1 Gbps" or "250 Mbps".
func (b Bandwidth) String() string {
	return humanize.SIWithDigits(float64(b), 2, "bps")
}
