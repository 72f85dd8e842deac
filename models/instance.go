package models

import (
	"time"

	"github.com/angusmcleod/mastodon/internal/crypto"
	"github.com/angusmcleod/mastodon/internal/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// An Instance is a domain managed by this server. An Instance has one
// Admin account, used to sign outbound fetches.
type Instance struct {
	ID               snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Domain           string `gorm:"size:64;uniqueIndex"`
	AdminID          *snowflake.ID
	Admin            *Account `gorm:"constraint:OnDelete:CASCADE;<-:create;"` // the admin account for this instance
	Title            string   `gorm:"size:64"`
	ShortDescription string
}

type Instances struct {
	db *gorm.DB
}

func NewInstances(db *gorm.DB) *Instances {
	return &Instances{db: db}
}

// FindByDomain finds an instance by domain.
func (i *Instances) FindByDomain(domain string) (*Instance, error) {
	var instance Instance
	return &instance, i.db.Preload("Admin").Preload("Admin.Actor").Where("domain = ?", domain).Take(&instance).Error
}

// AdminAccount returns the admin account used to sign outbound requests.
func (i *Instances) AdminAccount() (*Account, error) {
	var instance Instance
	if err := i.db.Joins("Admin").Preload("Admin.Actor").Take(&instance, "admin_id is not null").Error; err != nil {
		return nil, err
	}
	return instance.Admin, nil
}

// Create creates a new instance, complete with an admin account.
func (i *Instances) Create(domain, title, description, adminEmail string) (*Instance, error) {
	var instance Instance
	err := i.db.Transaction(func(tx *gorm.DB) error {
		kp, err := crypto.GenerateRSAKeypair()
		if err != nil {
			return err
		}

		// use the first 72 bytes of the private key as the bcrypt
		// password for the admin account; it is never typed by a human
		encrypted, err := bcrypt.GenerateFromPassword(kp.PrivateKey[:72], bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		instance = Instance{
			ID:               snowflake.Now(),
			Domain:           domain,
			Title:            title,
			ShortDescription: description,
		}
		if err := tx.Create(&instance).Error; err != nil {
			return err
		}

		actor := &Actor{
			ID:          snowflake.Now(),
			Type:        "LocalService",
			Name:        "admin",
			Domain:      domain,
			URI:         "https://" + domain + "/u/admin",
			DisplayName: "admin",
			PublicKey:   kp.PublicKey,
		}
		if err := tx.Create(actor).Error; err != nil {
			return err
		}

		adminAccount := Account{
			ID:                snowflake.Now(),
			InstanceID:        instance.ID,
			ActorID:           actor.ID,
			Actor:             actor,
			Email:             adminEmail,
			EncryptedPassword: encrypted,
			PrivateKey:        kp.PrivateKey,
		}
		if err := tx.Create(&adminAccount).Error; err != nil {
			return err
		}
		return tx.Model(&instance).Update("admin_id", adminAccount.ID).Error
	})
	return &instance, err
}
