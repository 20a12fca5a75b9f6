package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"strategy-lab/internal/domain"
)

// TradeID identifies the seq-th closed trade of a run: the hex SHA-256 of
// "run_id|seq|symbol|entry_unix". Trades carry no id of their own, so the
// id is derived when the run is persisted.
func TradeID(runID string, seq int, t *domain.Trade) string {
	h := sha256.New()
	for i, part := range []string{runID, strconv.Itoa(seq), t.Symbol, strconv.FormatInt(t.EntryDate.Unix(), 10)} {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
