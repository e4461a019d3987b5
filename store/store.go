// Package store persists finished motion events to a database.
package store

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"catnip/video"
)

type EventRecord struct {
	gorm.Model

	Identifier string `gorm:"uniqueIndex"`

	StartedAt time.Time
	EndedAt   time.Time

	Frames      int
	VideoPath   string
	DurationSec int
}

// Store writes one EventRecord per motion event and fills in the video
// duration once the recording is playable. It implements video.Listener.
type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate event store: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle so other components (push
// subscriptions) can share the connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) EventStarted(e *video.Event) {}

func (s *Store) EventEnded(e *video.Event) {
	rec := &EventRecord{
		Identifier: e.ID,
		StartedAt:  e.Start,
		EndedAt:    e.End(),
		Frames:     e.Frames(),
		VideoPath:  e.VideoPath(),
	}
	if err := s.db.Create(rec).Error; err != nil {
		log.Errorf("Failed to store event %v: %v", e.ID, err)
	}
}

func (s *Store) RecordingReady(r *video.Recording) {
	err := s.db.Model(&EventRecord{}).
		Where("identifier = ?", r.Identifier).
		Updates(map[string]interface{}{
			"duration_sec": r.DurationSec,
			"frames":       r.Frames,
			"video_path":   r.Path,
		}).Error
	if err != nil {
		log.Errorf("Failed to update event %v: %v", r.Identifier, err)
	}
}

// Recent returns the most recently started events, newest first.
func (s *Store) Recent(limit int) ([]*EventRecord, error) {
	var recs []*EventRecord
	err := s.db.Order("started_at desc").Limit(limit).Find(&recs).Error
	return recs, err
}
