// Package entropy owns seed handling. Every stochastic concern draws from its
// own rand.Rand derived from the batch seed, so results never depend on a
// process-wide source.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"math"
	mrand "math/rand"
	"time"
)

// Offsets separate the streams used by different concerns.
const (
	OffsetDataset = 100
	OffsetRoutes  = 300
	OffsetRuns    = 500
)

// ResolveSeed returns seed unchanged unless it is 0, in which case a fresh
// seed is drawn from crypto/rand, falling back to the clock.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	s := cryptoSeed()
	if s == 0 {
		s = time.Now().UnixNano()
	}
	slog.Debug("derived seed", "seed", s)
	return s
}

// New returns a source for the given concern.
func New(seed int64, offset int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed + offset))
}

// ForRun returns the source for run i of a batch.
func ForRun(seed int64, run int) *mrand.Rand {
	return New(seed, OffsetRuns+int64(run))
}

// cryptoSeed returns a positive seed from crypto/rand, or 0 on failure.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	// Keep it positive and leave headroom for the offsets.
	return int64(binary.LittleEndian.Uint64(buf[:]) % (math.MaxInt64 / 2))
}
