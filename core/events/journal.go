package events

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	bolt "go.etcd.io/bbolt"

	"admarket/core/types"
	"admarket/observability"
)

var (
	bucketEvents  = []byte("events")
	bucketOffsets = []byte("offsets")
)

// Record is a journalled event together with its assigned sequence number.
// Sequences are strictly monotonic so a consumer replaying from its last
// committed offset observes every transition at least once.
type Record struct {
	Sequence uint64       `json:"sequence"`
	Payload  *types.Event `json:"payload"`
}

// Journal is a persistent append-only event log. It satisfies the Emitter
// interface so engines can write straight into it, and exposes the offset
// bookkeeping the external indexer relies on for exactly-once-effective
// replay.
type Journal struct {
	db  *bolt.DB
	log *slog.Logger
}

// OpenJournal opens (or creates) the journal file at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEvents); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketOffsets)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init buckets: %w", err)
	}
	return &Journal{db: db, log: slog.Default()}, nil
}

// SetLogger overrides the logger used for emit failures.
func (j *Journal) SetLogger(log *slog.Logger) {
	if log == nil {
		return
	}
	j.log = log
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append persists the event and returns its assigned sequence number.
func (j *Journal) Append(evt Event) (uint64, error) {
	if evt == nil {
		return 0, fmt.Errorf("journal: nil event")
	}
	payload := payloadFor(evt)
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("journal: encode %s: %w", payload.Type, err)
	}
	var seq uint64
	err = j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		next, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		seq = next
		return bucket.Put(sequenceKey(next), raw)
	})
	if err != nil {
		return 0, fmt.Errorf("journal: append %s: %w", payload.Type, err)
	}
	observability.Events().RecordEmitted(payload.Type)
	return seq, nil
}

// Emit implements the Emitter interface. Append failures are logged rather
// than propagated because engine commands must not fail on observer plumbing.
func (j *Journal) Emit(evt Event) {
	if _, err := j.Append(evt); err != nil {
		j.log.Error("journal append failed", "type", evt.EventType(), "error", err)
	}
}

// ReadFrom returns up to max records with sequence strictly greater than
// after, in sequence order.
func (j *Journal) ReadFrom(after uint64, max int) ([]Record, error) {
	if max <= 0 {
		return nil, nil
	}
	records := make([]Record, 0, max)
	err := j.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketEvents).Cursor()
		for k, v := cursor.Seek(sequenceKey(after + 1)); k != nil && len(records) < max; k, v = cursor.Next() {
			payload := new(types.Event)
			if err := json.Unmarshal(v, payload); err != nil {
				return fmt.Errorf("decode sequence %d: %w", binary.BigEndian.Uint64(k), err)
			}
			records = append(records, Record{Sequence: binary.BigEndian.Uint64(k), Payload: payload})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}
	return records, nil
}

// CommitOffset records the highest sequence the named consumer has fully
// processed. Offsets only move forward; a stale commit is ignored so replays
// after a crash remain safe.
func (j *Journal) CommitOffset(consumer string, seq uint64) error {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return fmt.Errorf("journal: consumer name required")
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketOffsets)
		if current := bucket.Get([]byte(consumer)); current != nil {
			if binary.BigEndian.Uint64(current) >= seq {
				return nil
			}
		}
		return bucket.Put([]byte(consumer), sequenceKey(seq))
	})
}

// Offset returns the last committed sequence for the named consumer, zero if
// the consumer has never committed.
func (j *Journal) Offset(consumer string) (uint64, error) {
	var seq uint64
	err := j.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketOffsets).Get([]byte(strings.TrimSpace(consumer))); raw != nil {
			seq = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	return seq, err
}

func payloadFor(evt Event) *types.Event {
	if p, ok := evt.(Payloader); ok {
		if payload := p.Event(); payload != nil {
			return payload
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
