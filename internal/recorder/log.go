package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
)

// entry is one stored record.
type entry struct {
	Seq     uint64
	Header  []byte
	Payload []byte
}

// plotLog is the append-only log of one plot.
type plotLog struct {
	db   *pebblestore.DB
	plot string

	mu      sync.Mutex
	lastSeq uint64
}

func openLog(db *pebblestore.DB, plot string) (*plotLog, error) {
	l := &plotLog{db: db, plot: plot}
	meta, err := db.Get(keyMeta(plot))
	switch {
	case err == nil && len(meta) >= 8:
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	case err != nil && !errors.Is(err, pebblestore.ErrNotFound):
		return nil, err
	}
	return l, nil
}

// append writes one record and the updated metadata in a single batch.
func (l *plotLog) append(ctx context.Context, header, payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.lastSeq + 1
	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyEntry(l.plot, seq), encodeRecord(header, payload), nil); err != nil {
		return 0, err
	}
	if err := b.Set(keyMeta(l.plot), appendBE8(nil, seq), nil); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	l.lastSeq = seq
	return seq, nil
}

// last returns up to n of the newest entries, oldest first. Records that
// fail their checksum are skipped.
func (l *plotLog) last(n int) ([]entry, error) {
	lower, upper := entryBounds(l.plot)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]entry, 0, max(n, 0))
	for ok := iter.Last(); ok && (n <= 0 || len(out) < n); ok = iter.Prev() {
		h, p, valid := decodeRecord(iter.Value())
		if !valid {
			continue
		}
		out = append(out, entry{Seq: seqFromKey(iter.Key()), Header: h, Payload: p})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, iter.Error()
}

// count returns the number of stored entries and the oldest sequence.
func (l *plotLog) count() (int, uint64, error) {
	lower, upper := entryBounds(l.plot)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, 0, err
	}
	defer iter.Close()
	if !iter.First() {
		return 0, 0, iter.Error()
	}
	first := seqFromKey(iter.Key())
	l.mu.Lock()
	last := l.lastSeq
	l.mu.Unlock()
	if last < first {
		return 0, first, nil
	}
	return int(last - first + 1), first, nil
}

// trimToMax deletes the oldest entries so at most keep remain. Sequences are
// contiguous because only the oldest entries are ever removed, so a single
// range delete covers them.
func (l *plotLog) trimToMax(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	n, first, err := l.count()
	if err != nil || n <= keep {
		return 0, err
	}
	drop := n - keep
	b := l.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(keyEntry(l.plot, first), keyEntry(l.plot, first+uint64(drop)), nil); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return drop, nil
}
