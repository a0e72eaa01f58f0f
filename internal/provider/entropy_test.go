package provider

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSPRNG_InRange(t *testing.T) {
	var e CSPRNG
	for i := 0; i < 200; i++ {
		v := e.Intn(7)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 7)
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, 3, Fixed(13).Intn(10))
	assert.Equal(t, 0, Fixed(0).Intn(5))
	assert.Equal(t, 4, Fixed(-1).Intn(5))
}

func TestIntRange(t *testing.T) {
	assert.Equal(t, 1, IntRange(Fixed(0), 1, 10))
	assert.Equal(t, 10, IntRange(Fixed(9), 1, 10))
	assert.Equal(t, 42, IntRange(Fixed(5), 42, 42))
}

func TestSimulatedFields(t *testing.T) {
	ipRe := regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, ipRe, SimulatedIP(CSPRNG{}))
		n := TrafficIncrement(CSPRNG{})
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 10)
	}
	assert.Equal(t, "10 KB", SimulatedPacketSize(Fixed(0)))
	assert.Equal(t, "59 KB", SimulatedPacketSize(Fixed(49)))
	assert.Equal(t, "7.7.7.7", SimulatedIP(Fixed(7)))
}

func TestFallbackSessionDuration(t *testing.T) {
	assert.Equal(t, 30_000_000*time.Millisecond, FallbackSessionDuration(Fixed(0)))
	assert.Equal(t, 630_000_000*time.Millisecond-time.Millisecond, FallbackSessionDuration(Fixed(599_999_999)))

	for i := 0; i < 50; i++ {
		d := FallbackSessionDuration(CSPRNG{})
		assert.GreaterOrEqual(t, d, 30_000_000*time.Millisecond)
		assert.Less(t, d, 630_000_000*time.Millisecond)
	}
}
