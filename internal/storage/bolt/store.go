// Package bolt provides a bbolt implementation of storage.Store.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/pkg/ctxlog"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "incidents"

// Store keeps one JSON record per incident, keyed by big-endian id.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens or creates the database file at path, creating missing parent directories.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// LoadIncidents returns every record in id order.
func (s *Store) LoadIncidents(ctx context.Context) ([]domain.IncidentRecord, error) {
	logger := ctxlog.FromContextOr(ctx, s.logger)
	records := []domain.IncidentRecord{}

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		return bucket.ForEach(func(k, v []byte) error {
			var rec domain.IncidentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode incident %d: %w", decodeKey(k), err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if errors.Is(err, bolt.ErrBucketNotFound) {
		logger.Info("no previous incident data", "path", s.db.Path())
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}

	logger.Info("incidents loaded", "path", s.db.Path(), "count", len(records))
	return records, nil
}

// SaveIncidents replaces the bucket contents in one update transaction.
func (s *Store) SaveIncidents(ctx context.Context, records []domain.IncidentRecord) error {
	logger := ctxlog.FromContextOr(ctx, s.logger)

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("clear bucket: %w", err)
		}
		bucket, err := tx.CreateBucket([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		for _, rec := range records {
			value, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode incident %d: %w", rec.ID, err)
			}
			if err := bucket.Put(encodeKey(rec.ID), value); err != nil {
				return fmt.Errorf("put incident %d: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save incidents: %w", err)
	}

	logger.Info("incidents saved", "path", s.db.Path(), "count", len(records))
	return nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeKey(id int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func decodeKey(key []byte) int {
	if len(key) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(key))
}
