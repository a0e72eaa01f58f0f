package provider

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Entropy supplies the pseudo-random values used for simulated fields
// (origin addresses, payload sizes, traffic, fallback session durations).
type Entropy interface {
	// Intn returns a value in [0, n). n must be positive.
	Intn(n int) int
}

// CSPRNG draws from crypto/rand.
type CSPRNG struct{}

// Intn implements Entropy.
func (CSPRNG) Intn(n int) int {
	r, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS source is broken.
		panic(fmt.Sprintf("csprng: %v", err))
	}
	return int(r.Int64())
}

// Fixed is a deterministic Entropy that always yields v modulo n.
type Fixed int

// Intn implements Entropy.
func (f Fixed) Intn(n int) int {
	v := int(f) % n
	if v < 0 {
		v += n
	}
	return v
}

// IntRange returns a value in [min, max].
func IntRange(e Entropy, min, max int) int {
	if max <= min {
		return min
	}
	return min + e.Intn(max-min+1)
}

// Fallback session duration window, used when no session is active.
const (
	FallbackSessionMin  = 30_000_000 * time.Millisecond
	FallbackSessionSpan = 600_000_000
)

// SimulatedIP returns a random dotted-quad address.
func SimulatedIP(e Entropy) string {
	return fmt.Sprintf("%d.%d.%d.%d", e.Intn(256), e.Intn(256), e.Intn(256), e.Intn(256))
}

// SimulatedPacketSize returns a payload size label between 10 and 59 KB.
func SimulatedPacketSize(e Entropy) string {
	return fmt.Sprintf("%d KB", IntRange(e, 10, 59))
}

// TrafficIncrement returns the KB added to a session per traffic tick (1-10).
func TrafficIncrement(e Entropy) int {
	return IntRange(e, 1, 10)
}

// FallbackSessionDuration is the synthetic duration reported when no session
// is active, in [30,000,000 ms, 630,000,000 ms).
func FallbackSessionDuration(e Entropy) time.Duration {
	return FallbackSessionMin + time.Duration(e.Intn(FallbackSessionSpan))*time.Millisecond
}
