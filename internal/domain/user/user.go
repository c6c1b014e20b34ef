package user

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Identity mirrors an identity registered with the external auth provider.
type Identity struct {
	ID              string            `gorm:"primaryKey;size:64" json:"id"`
	Email           string            `gorm:"size:255;index" json:"email,omitempty"`
	RawUserMetaData datatypes.JSONMap `gorm:"column:raw_user_meta_data" json:"raw_user_meta_data,omitempty"`
	CreatedAt       time.Time         `gorm:"<-:create" json:"created_at"`

	Profile *User `gorm:"foreignKey:ID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Identity) TableName() string { return "identities" }

// AfterCreate provisions the profile row. It runs inside the transaction that
// inserts the identity, so both rows commit or neither does.
func (i *Identity) AfterCreate(tx *gorm.DB) error {
	profile := User{
		ID:        i.ID,
		FullName:  metaString(i.RawUserMetaData, "full_name"),
		AvatarURL: metaString(i.RawUserMetaData, "avatar_url"),
	}
	return tx.Create(&profile).Error
}

func metaString(meta datatypes.JSONMap, key string) *string {
	if meta == nil {
		return nil
	}
	s, ok := meta[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// User is the self-owned profile of an identity.
type User struct {
	ID             string            `gorm:"primaryKey;size:64" json:"id"`
	FullName       *string           `gorm:"size:255" json:"full_name"`
	AvatarURL      *string           `gorm:"size:1024" json:"avatar_url"`
	BillingAddress datatypes.JSONMap `json:"billing_address,omitempty"`
	PaymentMethod  datatypes.JSONMap `json:"payment_method,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:ID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

// Customer maps a user to the payment processor's customer id. Never served
// to the owning user.
type Customer struct {
	ID               string `gorm:"primaryKey;size:64" json:"id"`
	StripeCustomerID string `gorm:"size:255;not null;uniqueIndex" json:"stripe_customer_id"`
}

func (Customer) TableName() string { return "customers" }
