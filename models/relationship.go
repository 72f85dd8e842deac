package models

import (
	"github.com/angusmcleod/mastodon/internal/snowflake"
	"gorm.io/gorm"
)

// Languages is an unordered set of language codes, stored as JSON.
type Languages []string

// A Relationship records the follow edge between a pair of actors, along
// with the follower's per-edge settings.
type Relationship struct {
	ActorID     snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Actor       *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	TargetID    snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	Target      *Actor       `gorm:"constraint:OnDelete:CASCADE;<-:false;"`
	Following   bool         `gorm:"not null;default:false"`
	FollowedBy  bool         `gorm:"not null;default:false"`
	ShowReblogs bool         `gorm:"not null;default:true"`
	Notify      bool         `gorm:"not null;default:false"`
	Languages   Languages    `gorm:"serializer:json"`
}

type Relationships struct {
	db *gorm.DB
}

func NewRelationships(db *gorm.DB) *Relationships {
	return &Relationships{db: db}
}

// Follow establishes a follow relationship between actor and the target.
// Options adjust the edge's settings before it is saved.
func (r *Relationships) Follow(actor, target *Actor, opts ...func(*Relationship)) (*Relationship, error) {
	forward, err := r.findOrCreate(actor, target)
	if err != nil {
		return nil, err
	}
	forward.Following = true
	for _, opt := range opts {
		opt(forward)
	}
	if err := r.db.Save(forward).Error; err != nil {
		return nil, err
	}
	inverse, err := r.findOrCreate(target, actor)
	if err != nil {
		return nil, err
	}
	inverse.FollowedBy = true
	if err := r.db.Save(inverse).Error; err != nil {
		return nil, err
	}
	return forward, nil
}

// FollowsWithDomain returns every follow edge with an endpoint on the
// given domain.
func (r *Relationships) FollowsWithDomain(domain string) ([]Relationship, error) {
	var follows []Relationship
	err := r.db.Joins("Actor").Joins("Target").
		Where("relationships.following = ?", true).
		Where(r.db.Where("Actor.domain = ?", domain).Or("Target.domain = ?", domain)).
		Find(&follows).Error
	return follows, err
}

// Destroy removes the given follow edges. Snapshotting the edges before
// they are destroyed is the caller's responsibility.
func (r *Relationships) Destroy(follows []Relationship) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, follow := range follows {
			if err := tx.Where("actor_id = ? AND target_id = ?", follow.ActorID, follow.TargetID).Delete(&Relationship{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Relationships) findOrCreate(actor, target *Actor) (*Relationship, error) {
	rel := Relationship{
		ActorID:  actor.ID,
		TargetID: target.ID,
	}
	return &rel, r.db.Omit("Actor", "Target").FirstOrCreate(&rel).Error
}
