package cluster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"deltastore/pkg/logger"
)

// ErrTransportUnknown is the opaque cause a keyspace reports when the
// transport rejects a request without a specific reason. Frame overruns
// surface this way; callers that need to distinguish them must re-measure
// the frame they attempted (see the writer's size guard).
var ErrTransportUnknown = errors.New("transport: unknown error")

// Keyspace is a handle to one shard of the backing cluster, backed by a
// pebble instance. All mutations go through MutationBatch so the frame
// envelope contract is enforced in one place.
type Keyspace struct {
	name       string
	path       string
	db         *pebble.DB
	frameLimit int
}

// OpenKeyspace opens (or creates) the pebble store for a keyspace.
// frameLimit is the transport's configured maximum frame size in bytes;
// Apply rejects larger frames the way a framed transport would.
func OpenKeyspace(name, path string, frameLimit int) (*Keyspace, error) {
	logger.Info("opening_keyspace", "name", name, "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("keyspace_open_failed", "name", name, "path", path, "error", err)
		return nil, fmt.Errorf("open keyspace %s: %w", name, err)
	}
	return &Keyspace{name: name, path: path, db: db, frameLimit: frameLimit}, nil
}

// Close closes the underlying pebble instance.
func (ks *Keyspace) Close() error {
	if ks.db == nil {
		return nil
	}
	if err := ks.db.Close(); err != nil {
		return err
	}
	ks.db = nil
	logger.Info("keyspace_closed", "name", ks.name)
	return nil
}

// Name returns the keyspace name.
func (ks *Keyspace) Name() string { return ks.name }

// FrameLimit returns the transport frame limit this keyspace enforces.
func (ks *Keyspace) FrameLimit() int { return ks.frameLimit }

// Ready reports whether the keyspace is open.
func (ks *Keyspace) Ready() bool { return ks.db != nil }

// Get returns the raw cell stored under key, or pebble.ErrNotFound.
func (ks *Keyspace) Get(key []byte) ([]byte, error) {
	if ks.db == nil {
		return nil, fmt.Errorf("keyspace %s not open", ks.name)
	}
	v, closer, err := ks.db.Get(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

// ScanPrefix calls fn for every key/value pair whose key starts with
// prefix, in key order. fn returning an error stops the scan.
func (ks *Keyspace) ScanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	if ks.db == nil {
		return fmt.Errorf("keyspace %s not open", ks.name)
	}
	iter, err := ks.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		k := append([]byte(nil), iter.Key()...)
		v := append([]byte(nil), iter.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ScanRowKeys calls fn once per distinct row key present in cf, in key
// order. Row keys must not contain the key separator ':'.
func (ks *Keyspace) ScanRowKeys(cf ColumnFamily, fn func(rowKey string) error) error {
	if ks.db == nil {
		return fmt.Errorf("keyspace %s not open", ks.name)
	}
	prefix := []byte(string(cf) + ":")
	iter, err := ks.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(prefix); iter.Valid(); {
		rest := strings.TrimPrefix(string(iter.Key()), string(prefix))
		i := strings.IndexByte(rest, ':')
		if i < 0 {
			// stray key outside the row layout; skip it
			iter.Next()
			continue
		}
		rowKey := rest[:i]
		if err := fn(rowKey); err != nil {
			return err
		}
		// jump past all remaining cells of this row: ';' is ':'+1
		iter.SeekGE([]byte(string(prefix) + rowKey + ";"))
	}
	return iter.Error()
}

// apply hands a built pebble batch to the store. Strong writes are synced.
func (ks *Keyspace) apply(b *pebble.Batch, level ConsistencyLevel) error {
	if ks.db == nil {
		return fmt.Errorf("keyspace %s not open", ks.name)
	}
	opt := pebble.NoSync
	if level == Strong {
		opt = pebble.Sync
	}
	return ks.db.Apply(b, opt)
}

// prefixEnd returns the smallest key greater than every key with the
// given prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
