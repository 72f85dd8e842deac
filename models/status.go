package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/angusmcleod/mastodon/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// A Status is a single message posted by a user, local or federated.
//
// EditedAt records the last time the author explicitly edited the post's
// content; it is never set by a counter or tally resync.
//
// The Untrusted counts are copied verbatim from the owning peer's own
// claims. They are advisory display values only and are never used for
// moderation or ranking decisions, which is why they are named the way
// they are.
type Status struct {
	ID                       snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt                time.Time    `gorm:"autoUpdateTime:false"`
	EditedAt                 *time.Time
	ActorID                  snowflake.ID
	Actor                    *Actor `gorm:"constraint:OnDelete:CASCADE;<-:false;"` // don't update actor on status update
	Sensitive                bool
	SpoilerText              string     `gorm:"size:128"`
	Visibility               Visibility `gorm:"not null"`
	Language                 string     `gorm:"size:8"`
	Note                     string     `gorm:"type:text"`
	URI                      string     `gorm:"uniqueIndex;size:191;not null"`
	UntrustedReblogsCount    int        `gorm:"not null;default:0"`
	UntrustedFavouritesCount int        `gorm:"not null;default:0"`
	Poll                     *StatusPoll `gorm:"constraint:OnDelete:CASCADE;"`
}

type Visibility string

func (Visibility) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('public', 'unlisted', 'private', 'direct', 'limited')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

// A StatusPoll is the poll attached to a status. Its options are fixed at
// creation; a resync from the owning peer replaces tallies but never
// reorders or renames options.
type StatusPoll struct {
	StatusID  snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	ExpiresAt time.Time
	Multiple  bool
	Options   []StatusPollOption `gorm:"constraint:OnDelete:CASCADE;"`
}

// A StatusPollOption is one option of a poll. Count caches the vote total
// reported by the owning peer; it is not derived from local votes.
type StatusPollOption struct {
	ID           uint32 `gorm:"primarykey;autoIncrement:true"`
	StatusPollID snowflake.ID
	Title        string `gorm:"size:255;not null"`
	Count        int    `gorm:"not null;default:0"`
}

type Statuses struct {
	db *gorm.DB
}

func NewStatuses(db *gorm.DB) *Statuses {
	return &Statuses{db: db}
}

// FindOrCreate searches for a status by its URI. If the status is not
// found, it calls the given function to create a new status, stores that
// status in the database and returns it.
func (s *Statuses) FindOrCreate(uri string, createFn func(string) (*Status, error)) (*Status, error) {
	status, err := s.FindByURI(uri)
	if err == nil {
		return status, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	status, err = createFn(uri)
	if err != nil {
		return nil, fmt.Errorf("Statuses.FindOrCreate: %w", err)
	}
	if err := s.db.Create(&status).Error; err != nil {
		return nil, err
	}
	return status, nil
}

func (s *Statuses) FindByURI(uri string) (*Status, error) {
	if uri == "" {
		return nil, errors.New("Statuses.FindByURI: uri is empty")
	}
	// use find to avoid the not found error on empty result
	var statuses []Status
	query := s.db.Joins("Actor").Scopes(PreloadStatus)
	if err := query.Where("statuses.uri = ?", uri).Find(&statuses).Error; err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &statuses[0], nil
}

// PreloadStatus preloads all of a Status' relations and associations.
// Poll options keep their creation order.
func PreloadStatus(query *gorm.DB) *gorm.DB {
	return query.Preload("Poll").Preload("Poll.Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("status_poll_options.id ASC")
	})
}
