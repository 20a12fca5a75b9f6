package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"strategy-lab/internal/domain"
)

// ComputeBacktestRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(strategy|symbol|period_start|period_end|capital|candles|k1=v1,k2=v2...)
// where candles is a CandleDigest of the simulated series. Params are
// serialized with sorted keys. Returns base58-encoded hash.
func ComputeBacktestRunID(
	strategyID string,
	symbol string,
	periodStart int64,
	periodEnd int64,
	initialCapital float64,
	candleDigest string,
	params domain.Params,
) string {
	var b strings.Builder
	for i, k := range params.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%g", k, params[k])
	}

	data := fmt.Sprintf("%s|%s|%d|%d|%g|%s|%s",
		strategyID,
		symbol,
		periodStart,
		periodEnd,
		initialCapital,
		candleDigest,
		b.String(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// CandleDigest is the hex SHA-256 of every candle's date and OHLCV, in
// series order. Two series differing in any price or volume digest apart.
func CandleDigest(candles []*domain.Candle) string {
	h := sha256.New()
	var buf [8]byte
	put := func(u uint64) {
		binary.BigEndian.PutUint64(buf[:], u)
		h.Write(buf[:])
	}
	for _, c := range candles {
		put(uint64(c.Date.Unix()))
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			put(math.Float64bits(v))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewOptimizationRunID returns a random run id for an optimizer invocation.
// Optimizer runs depend on the random seed, so they are not content-addressed.
func NewOptimizationRunID() string {
	return uuid.NewString()
}
