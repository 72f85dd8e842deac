package models

import (
	"crypto/rsa"
	"time"

	"github.com/angusmcleod/mastodon/internal/crypto"
	"github.com/angusmcleod/mastodon/internal/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// An Account is a user account on an Instance. An Account belongs to an
// Actor, which carries the public half of its keypair.
type Account struct {
	ID                snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	InstanceID        snowflake.ID
	Instance          *Instance `gorm:"<-:create;"`
	ActorID           snowflake.ID
	Actor             *Actor `gorm:"<-:create;"`
	Email             string `gorm:"size:64;not null"`
	EncryptedPassword []byte `gorm:"size:60;not null"`
	PrivateKey        []byte `gorm:"not null"`
}

func (a *Account) Name() string {
	return a.Actor.Name
}

func (a *Account) Domain() string {
	return a.Actor.Domain
}

// PublicKeyID returns the key id outbound requests are signed as.
func (a *Account) PublicKeyID() string {
	return a.Actor.PublicKeyID()
}

// PrivKey returns the account's RSA private key.
func (a *Account) PrivKey() (*rsa.PrivateKey, error) {
	_, priv, err := crypto.ParseRSAPrivateKey(a.PrivateKey)
	return priv, err
}

type Accounts struct {
	db *gorm.DB
}

func NewAccounts(db *gorm.DB) *Accounts {
	return &Accounts{db: db}
}

func (a *Accounts) AccountForActor(actor *Actor) (*Account, error) {
	var account Account
	if err := a.db.Joins("Actor").First(&account, "actor_id = ?", actor.ID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// Create creates a local account, complete with its actor and keypair.
func (a *Accounts) Create(instance *Instance, name, email, password string) (*Account, error) {
	var account Account
	err := a.db.Transaction(func(tx *gorm.DB) error {
		kp, err := crypto.GenerateRSAKeypair()
		if err != nil {
			return err
		}
		passwd, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		actor := &Actor{
			ID:          snowflake.Now(),
			Type:        "LocalPerson",
			Name:        name,
			Domain:      instance.Domain,
			URI:         "https://" + instance.Domain + "/u/" + name,
			DisplayName: name,
			PublicKey:   kp.PublicKey,
		}
		if err := tx.Create(actor).Error; err != nil {
			return err
		}
		account = Account{
			ID:                snowflake.Now(),
			InstanceID:        instance.ID,
			ActorID:           actor.ID,
			Actor:             actor,
			Email:             email,
			EncryptedPassword: passwd,
			PrivateKey:        kp.PrivateKey,
		}
		return tx.Create(&account).Error
	})
	return &account, err
}
