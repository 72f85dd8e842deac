package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/angusmcleod/mastodon/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// An Actor is a federation identity, local or remote. Remote actors are
// created on first contact or discovery and carry the public key material
// used to authenticate requests signed by them.
type Actor struct {
	ID           snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Type         ActorType `gorm:"default:'Person';not null"`
	Name         string    `gorm:"size:64;uniqueIndex:idx_actors_name_domain;not null"`
	Domain       string    `gorm:"size:64;uniqueIndex:idx_actors_name_domain;not null"`
	URI          string    `gorm:"size:191;uniqueIndex;not null"`
	DisplayName  string    `gorm:"size:128"`
	Locked       bool      `gorm:"default:false;not null"`
	Note         string    `gorm:"type:text"`
	Avatar       string    `gorm:"size:255"`
	Header       string    `gorm:"size:255"`
	PublicKey    []byte    `gorm:"not null"`
	// BearerToken is an optional credential presented on outbound calls
	// to peers that require one.
	BearerToken  string `gorm:"size:255"`
	LastStatusAt time.Time
	Attributes   []*ActorAttribute `gorm:"constraint:OnDelete:CASCADE;"`
}

// An ActorAttribute is one name/value row of an actor's profile metadata
// table.
type ActorAttribute struct {
	ID      uint32 `gorm:"primarykey"`
	ActorID snowflake.ID
	Name    string `gorm:"size:255;not null"`
	Value   string `gorm:"size:255;not null"`
}

type ActorType string

func (ActorType) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('Person', 'Application', 'Service', 'Group', 'Organization', 'LocalPerson', 'LocalService')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

func (a *Actor) Acct() string {
	if a.IsLocal() {
		return a.Name
	}
	return fmt.Sprintf("%s@%s", a.Name, a.Domain)
}

// IsLocal indicates whether the actor is local to the instance.
func (a *Actor) IsLocal() bool {
	switch a.Type {
	case "LocalPerson", "LocalService":
		return true
	default:
		return false
	}
}

// IsRemote indicates whether the actor is not local to the instance.
func (a *Actor) IsRemote() bool {
	return !a.IsLocal()
}

func (a *Actor) PublicKeyID() string {
	return fmt.Sprintf("%s#main-key", a.URI)
}

func (a *Actor) URL() string {
	return fmt.Sprintf("https://%s/@%s", a.Domain, a.Name)
}

type Actors struct {
	db *gorm.DB
}

func NewActors(db *gorm.DB) *Actors {
	return &Actors{db: db}
}

// Find finds an actor by its name and domain.
func (a *Actors) Find(name, domain string) (*Actor, error) {
	var actor Actor
	return &actor, a.db.Preload("Attributes").Where("name = ? AND domain = ?", name, domain).Take(&actor).Error
}

// FindByURI returns an actor by its URI if it exists locally.
func (a *Actors) FindByURI(uri string) (*Actor, error) {
	// use find to avoid the not found error on empty result
	var actors []Actor
	if err := a.db.Preload("Attributes").Where("uri = ?", uri).Find(&actors).Error; err != nil {
		return nil, err
	}
	if len(actors) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &actors[0], nil
}

// FindOrCreate searches for an actor by its URI. If the actor is not found,
// it calls the given function to create a new actor, stores that actor in
// the database and returns it.
func (a *Actors) FindOrCreate(uri string, createFn func(string) (*Actor, error)) (*Actor, error) {
	actor, err := a.FindByURI(uri)
	if err == nil {
		return actor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	actor, err = createFn(uri)
	if err != nil {
		return nil, fmt.Errorf("Actors.FindOrCreate: %w", err)
	}
	if err := a.db.Create(actor).Error; err != nil {
		return nil, err
	}
	return actor, nil
}

// SetPublicKey replaces the stored key material for the actor, eg. after a
// key rotation has been confirmed against the actor's own document.
func (a *Actors) SetPublicKey(actor *Actor, pemBytes []byte) error {
	actor.PublicKey = pemBytes
	return a.db.Model(actor).Update("public_key", pemBytes).Error
}

// Rename changes the actor's username. Callers are responsible for the
// collision check and the directory round-trip that gate a rename.
func (a *Actors) Rename(actor *Actor, name string) error {
	actor.Name = name
	return a.db.Model(actor).Update("name", name).Error
}
