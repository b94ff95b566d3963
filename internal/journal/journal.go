// Package journal keeps an append-only record of every log the core emits,
// keyed by log sequence, in a pebble store. Downstream consumers and
// restarts read it back in order.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/efreitasn/matchcore/internal/engine"
)

const (
	keyPrefix    = "log/"
	cursorPrefix = "cursor/"
)

// State is what a restart needs to continue where the journal ends.
type State struct {
	// LastSeq is the highest log sequence written.
	LastSeq uint64
	// TradeSeqs holds the highest trade sequence seen per product.
	TradeSeqs map[string]uint64
}

// Journal is safe for concurrent use; pebble serializes writes.
type Journal struct {
	db *pebble.DB
}

// Open opens or creates the journal in dir.
func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", dir, err)
	}
	return &Journal{db: db}, nil
}

// Close flushes and closes the store.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes a single log.
func (j *Journal) Append(l engine.Log) error {
	return j.HandleBatch(context.Background(), []engine.Log{l})
}

// HandleBatch writes logs atomically and syncs. Writing a sequence again
// overwrites it with the same content, so redelivery is harmless.
func (j *Journal) HandleBatch(ctx context.Context, logs []engine.Log) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := j.db.NewBatch()
	defer b.Close()

	for _, l := range logs {
		if l.Seq == 0 {
			return errors.New("journal: log without sequence")
		}
		val, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("journal: encode seq %d: %w", l.Seq, err)
		}
		if err := b.Set(keyFor(l.Seq), val, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Get returns the log with the given sequence.
func (j *Journal) Get(seq uint64) (engine.Log, bool, error) {
	val, closer, err := j.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return engine.Log{}, false, nil
	}
	if err != nil {
		return engine.Log{}, false, err
	}
	defer closer.Close()

	var l engine.Log
	if err := json.Unmarshal(val, &l); err != nil {
		return engine.Log{}, false, fmt.Errorf("journal: decode seq %d: %w", seq, err)
	}
	return l, true, nil
}

// Range calls fn for every log with sequence >= from, in order. A non-nil
// error from fn stops the scan and is returned.
func (j *Journal) Range(from uint64, fn func(engine.Log) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: keyFor(from),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var l engine.Log
		if err := json.Unmarshal(iter.Value(), &l); err != nil {
			return fmt.Errorf("journal: decode %s: %w", iter.Key(), err)
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Last returns the highest sequence written, or zero for an empty journal.
func (j *Journal) Last() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// Replay calls fn for every log in order and collects the State needed to
// resume numbering.
func (j *Journal) Replay(fn func(engine.Log)) (State, error) {
	st := State{TradeSeqs: make(map[string]uint64)}
	err := j.Range(1, func(l engine.Log) error {
		if l.Type == engine.LogOrderMatched && l.Trade != nil {
			if l.Trade.Seq > st.TradeSeqs[l.Trade.ProductID] {
				st.TradeSeqs[l.Trade.ProductID] = l.Trade.Seq
			}
		}
		if l.Seq > st.LastSeq {
			st.LastSeq = l.Seq
		}
		fn(l)
		return nil
	})
	if err != nil {
		return State{}, err
	}
	return st, nil
}

// SaveCursor records a named position in time, e.g. how far a periodic
// sweep has progressed.
func (j *Journal) SaveCursor(name string, at time.Time) error {
	val, err := at.UTC().MarshalText()
	if err != nil {
		return err
	}
	return j.db.Set([]byte(cursorPrefix+name), val, pebble.Sync)
}

// Cursor returns a position saved with SaveCursor.
func (j *Journal) Cursor(name string) (time.Time, bool, error) {
	val, closer, err := j.db.Get([]byte(cursorPrefix + name))
	if errors.Is(err, pebble.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	defer closer.Close()

	var at time.Time
	if err := at.UnmarshalText(val); err != nil {
		return time.Time{}, false, fmt.Errorf("journal: decode cursor %s: %w", name, err)
	}
	return at, true, nil
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	s := string(b)
	if len(s) <= len(keyPrefix) {
		return 0, fmt.Errorf("journal: malformed key %q", s)
	}
	return strconv.ParseUint(s[len(keyPrefix):], 10, 64)
}
