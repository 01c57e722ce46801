// Package jsonfile provides a JSON file implementation of storage.Store with rotating backups.
package jsonfile

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/pkg/ctxlog"
)

const (
	dataFileName     = "incidents.json"
	backupDirName    = "backups"
	backupPrefix     = "incidents_backup_"
	backupSuffix     = ".json"
	backupTimeLayout = "20060102_150405.000000"

	// DefaultBackupKeep is the number of backups retained after each save.
	DefaultBackupKeep = 5
)

type document struct {
	Timestamp string                  `json:"timestamp"`
	Incidents []domain.IncidentRecord `json:"incidents"`
}

// Store keeps incidents in <dir>/incidents.json.
type Store struct {
	dir        string
	backupKeep int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBackupKeep sets how many backups survive rotation.
func WithBackupKeep(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.backupKeep = n
		}
	}
}

// WithClock sets the time source used for document and backup timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates the data and backup directories under dir and returns a store.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:        dir,
		backupKeep: DefaultBackupKeep,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.backupDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return s, nil
}

// Path returns the data file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dataFileName)
}

func (s *Store) backupDir() string {
	return filepath.Join(s.dir, backupDirName)
}

// LoadIncidents reads the data file. A missing file is not an error.
func (s *Store) LoadIncidents(ctx context.Context) ([]domain.IncidentRecord, error) {
	logger := ctxlog.FromContextOr(ctx, s.logger)

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("no previous incident data", "path", s.Path())
			return []domain.IncidentRecord{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.Path(), err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path(), err)
	}
	if doc.Incidents == nil {
		doc.Incidents = []domain.IncidentRecord{}
	}

	logger.Info("incidents loaded", "path", s.Path(), "count", len(doc.Incidents))
	return doc.Incidents, nil
}

// SaveIncidents backs up the current file and atomically replaces it with records.
func (s *Store) SaveIncidents(ctx context.Context, records []domain.IncidentRecord) error {
	logger := ctxlog.FromContextOr(ctx, s.logger)

	if records == nil {
		records = []domain.IncidentRecord{}
	}

	data, err := json.MarshalIndent(document{
		Timestamp: s.now().Format(time.RFC3339Nano),
		Incidents: records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode incidents: %w", err)
	}

	if err := s.backup(logger); err != nil {
		logger.Warn("failed to back up incident data", "error", err)
	}

	tmp, err := os.CreateTemp(s.dir, dataFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove temp file", "path", tmpName, "error", err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("replace %s: %w", s.Path(), err)
	}

	logger.Info("incidents saved", "path", s.Path(), "count", len(records))
	return nil
}

// Close implements storage.Store. The file store holds no open handles.
func (s *Store) Close() error {
	return nil
}

// backup copies the current data file into the backup directory and prunes old copies.
func (s *Store) backup(logger *slog.Logger) error {
	src, err := os.Open(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open data file: %w", err)
	}
	defer src.Close()

	now := s.now()
	name := filepath.Join(s.backupDir(), backupPrefix+now.Format(backupTimeLayout)+backupSuffix)

	dst, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if err := os.Chtimes(name, now, now); err != nil {
		return fmt.Errorf("stamp backup: %w", err)
	}

	logger.Debug("backup created", "path", name)
	return s.pruneBackups(logger)
}

// Backups returns backup file paths, newest first.
func (s *Store) Backups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir())
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	type backupFile struct {
		path    string
		modTime time.Time
	}

	files := make([]backupFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) || !strings.HasSuffix(e.Name(), backupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, backupFile{path: filepath.Join(s.backupDir(), e.Name()), modTime: info.ModTime()})
	}

	slices.SortFunc(files, func(a, b backupFile) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return cmp.Compare(b.path, a.path)
	})

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths, nil
}

func (s *Store) pruneBackups(logger *slog.Logger) error {
	paths, err := s.Backups()
	if err != nil {
		return err
	}
	if len(paths) <= s.backupKeep {
		return nil
	}

	var errs []error
	for _, p := range paths[s.backupKeep:] {
		if err := os.Remove(p); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("old backup removed", "path", p)
	}
	return errors.Join(errs...)
}
