package models

import (
	"fmt"
	"time"

	"github.com/angusmcleod/mastodon/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

type SeveranceKind string

const (
	SeveranceKindDomainBlock SeveranceKind = "domain_block"
)

func (SeveranceKind) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('domain_block')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

// A RelationshipSeveranceEvent records a moderation action that severed
// follow relationships in bulk, so affected users can later be told what
// was lost.
type RelationshipSeveranceEvent struct {
	ID        snowflake.ID  `gorm:"primarykey;autoIncrement:false"`
	CreatedAt time.Time     `gorm:"not null"`
	UpdatedAt time.Time     `gorm:"not null"`
	Kind      SeveranceKind `gorm:"not null"`
	Target    string        `gorm:"size:256;not null"`
	// ActionID identifies the admin action that caused the event.
	ActionID      string                `gorm:"size:36;not null"`
	Relationships []SeveredRelationship `gorm:"constraint:OnDelete:CASCADE;"`
}

// A SeveredRelationship is a write-once snapshot of one follow edge at
// the moment it was severed. Rows are never updated after insert.
type SeveredRelationship struct {
	RelationshipSeveranceEventID snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	ActorID                      snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	TargetID                     snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt                    time.Time    `gorm:"not null"`
	ShowReblogs                  bool         `gorm:"not null;default:true"`
	Notify                       bool         `gorm:"not null;default:false"`
	Languages                    Languages    `gorm:"serializer:json"`
}

type SeveranceEvents struct {
	db *gorm.DB
}

func NewSeveranceEvents(db *gorm.DB) *SeveranceEvents {
	return &SeveranceEvents{db: db}
}

// CreateFromFollows records a new severance event and snapshots the given
// follow edges under it. The snapshot preserves each edge's settings
// verbatim. Duplicate edges within the batch collapse to a single row.
func (s *SeveranceEvents) CreateFromFollows(kind SeveranceKind, target, actionID string, follows []Relationship) (*RelationshipSeveranceEvent, error) {
	event := RelationshipSeveranceEvent{
		ID:       snowflake.Now(),
		Kind:     kind,
		Target:   target,
		ActionID: actionID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Relationships").Create(&event).Error; err != nil {
			return err
		}
		return s.record(tx, &event, follows)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Record snapshots additional follow edges under an existing event.
// Re-recording an edge already snapshotted is a no-op, so a retried
// severance cannot duplicate rows.
func (s *SeveranceEvents) Record(event *RelationshipSeveranceEvent, follows []Relationship) error {
	return s.record(s.db, event, follows)
}

func (s *SeveranceEvents) record(tx *gorm.DB, event *RelationshipSeveranceEvent, follows []Relationship) error {
	if len(follows) == 0 {
		return nil
	}
	rows := make([]SeveredRelationship, 0, len(follows))
	for _, follow := range follows {
		rows = append(rows, SeveredRelationship{
			RelationshipSeveranceEventID: event.ID,
			ActorID:                      follow.ActorID,
			TargetID:                     follow.TargetID,
			ShowReblogs:                  follow.ShowReblogs,
			Notify:                       follow.Notify,
			Languages:                    follow.Languages,
		})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// Find returns the event with the given id, with its snapshot rows.
func (s *SeveranceEvents) Find(id snowflake.ID) (*RelationshipSeveranceEvent, error) {
	var event RelationshipSeveranceEvent
	if err := s.db.Preload("Relationships").First(&event, id).Error; err != nil {
		return nil, fmt.Errorf("finding severance event %d: %w", id, err)
	}
	return &event, nil
}
