package coarsetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow_Advances(t *testing.T) {
	start := Now()
	assert.WithinDuration(t, time.Now(), start, 2*Resolution)

	require.Eventually(t, func() bool {
		return Now().After(start)
	}, time.Second, Resolution/2)
}

func TestSince(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	assert.InDelta(t, time.Minute, Since(past), float64(2*Resolution))
}

func BenchmarkTimeNow(b *testing.B) {
	var t time.Time

	b.Run("time", func(b *testing.B) {
		for b.Loop() {
			t = time.Now()
		}
	})

	b.Run("coarsetime", func(b *testing.B) {
		for b.Loop() {
			t = Now()
		}
	})

	_ = t
}
