package journal

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/shoal/pkg/types"
)

var bucketRuns = []byte("runs")

// Store persists run records in a local BoltDB file
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the journal database under dataDir
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "shoal.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketRuns, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// runKey orders records chronologically in byte order. The run ID
// suffix keeps keys unique when two runs start in the same nanosecond.
func runKey(rec *types.RunRecord) []byte {
	return []byte(fmt.Sprintf("%020d/%s", rec.StartedAt.UTC().UnixNano(), rec.RunID))
}

// SaveRun appends one run record
func (s *Store) SaveRun(rec *types.RunRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(runKey(rec), data)
	})
}

// GetRun retrieves a run record by its run ID
func (s *Store) GetRun(runID string) (*types.RunRecord, error) {
	var found *types.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !strings.HasSuffix(string(k), "/"+runID) {
				continue
			}
			var rec types.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			found = &rec
			return nil
		}
		return fmt.Errorf("run not found: %s", runID)
	})
	return found, err
}

// ListRuns returns records newest first. A limit of zero or less
// returns everything.
func (s *Store) ListRuns(limit int) ([]*types.RunRecord, error) {
	var runs []*types.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				return nil
			}
			var rec types.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			runs = append(runs, &rec)
		}
		return nil
	})
	return runs, err
}

// Prune drops the oldest records beyond keep and reports how many
// were removed
func (s *Store) Prune(keep int) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		total := b.Stats().KeyN

		c := b.Cursor()
		for k, _ := c.First(); k != nil && total-removed > keep; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}
