package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/logging"
)

// Store is the SQLite event log.
type Store struct {
	db     *gorm.DB
	path   string
	logger *slog.Logger
}

var _ audiocore.Listener = (*Store)(nil)

// Open opens or creates the database at path and migrates the schema.
func Open(path string, debug bool) (*Store, error) {
	log := logging.ForService("datastore").With("path", path)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, dbError("create_dir", fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger(log, level)})
	if err != nil {
		return nil, dbError("open", fmt.Errorf("failed to open SQLite database: %w", err))
	}

	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, dbError("migrate", fmt.Errorf("failed to migrate event schema: %w", err))
	}

	log.Info("event log opened")
	return &Store{db: db, path: path, logger: log}, nil
}

// Save inserts an event.
func (s *Store) Save(ctx context.Context, event *Event) error {
	if s.db == nil {
		return dbError("save", fmt.Errorf("database connection is not initialized"))
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return dbError("save", err)
	}
	return nil
}

// RecordingWritten logs rec written to path.
func (s *Store) RecordingWritten(ctx context.Context, rec *audiocore.Recording, path string) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	return s.Save(ctx, &Event{
		EventID:           id,
		File:              path,
		EventTime:         rec.EventTime,
		FlushTime:         rec.FlushTime,
		DurationSeconds:   rec.Duration().Seconds(),
		SampleRate:        rec.SampleRate,
		Channels:          rec.Channels,
		TriggeredChannels: conf.FormatMonitorChannels(rec.Triggered),
	})
}

// List returns up to limit events, newest first. A limit of zero or less
// returns every event.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	var events []Event
	q := s.db.WithContext(ctx).Order("event_time DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, dbError("list", err)
	}
	return events, nil
}

// Count returns the number of logged events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Event{}).Count(&n).Error; err != nil {
		return 0, dbError("count", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError("close", err)
	}
	return sqlDB.Close()
}

func dbError(operation string, err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
