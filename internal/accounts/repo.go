package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/db"
	"storefront/internal/domain/user"
	"storefront/internal/policy"
)

type Repo struct {
	db  *gorm.DB
	pol *policy.Policy
}

func NewRepo(gdb *gorm.DB, pol *policy.Policy) *Repo {
	return &Repo{db: gdb, pol: pol}
}

type RegisterInput struct {
	ID       string
	Email    string
	Metadata datatypes.JSONMap
}

// RegisterIdentity mirrors a new identity from the auth provider. The
// profile row is created by the identity's AfterCreate hook in the same
// transaction.
func (r *Repo) RegisterIdentity(ctx context.Context, p policy.Principal, in RegisterInput) (user.User, error) {
	if _, err := r.pol.Authorize(p, policy.TableIdentities, policy.OpInsert); err != nil {
		return user.User{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	ident := user.Identity{ID: id, Email: strings.ToLower(strings.TrimSpace(in.Email)), RawUserMetaData: in.Metadata}

	var profile user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ident).Error; err != nil {
			return fmt.Errorf("failed to register identity: %w", db.Translate(err))
		}
		return tx.First(&profile, "id = ?", id).Error
	})
	if err != nil {
		return user.User{}, err
	}
	return profile, nil
}

// DeleteIdentity removes an identity; profile and customer mapping cascade.
func (r *Repo) DeleteIdentity(ctx context.Context, p policy.Principal, id string) error {
	if _, err := r.pol.Authorize(p, policy.TableIdentities, policy.OpDelete); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Delete(&user.Identity{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete identity: %w", db.Translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete identity: %w", db.ErrNotFound)
	}
	return nil
}

func (r *Repo) GetUser(ctx context.Context, p policy.Principal, id string) (user.User, error) {
	scope, ok := r.pol.ReadScope(p, policy.TableUsers)
	if !ok {
		return user.User{}, fmt.Errorf("failed to get user: %w", db.ErrNotFound)
	}
	var u user.User
	if err := r.db.WithContext(ctx).Scopes(scope).First(&u, "id = ?", id).Error; err != nil {
		return user.User{}, fmt.Errorf("failed to get user: %w", db.Translate(err))
	}
	return u, nil
}

type UserPatch struct {
	FullName       *string           `json:"full_name"`
	AvatarURL      *string           `json:"avatar_url"`
	BillingAddress datatypes.JSONMap `json:"billing_address"`
	PaymentMethod  datatypes.JSONMap `json:"payment_method"`
}

func (p UserPatch) fields() map[string]any {
	f := map[string]any{}
	if p.FullName != nil {
		f["full_name"] = *p.FullName
	}
	if p.AvatarURL != nil {
		f["avatar_url"] = *p.AvatarURL
	}
	if p.BillingAddress != nil {
		f["billing_address"] = p.BillingAddress
	}
	if p.PaymentMethod != nil {
		f["payment_method"] = p.PaymentMethod
	}
	return f
}

// UpdateUser changes profile fields. End users may only touch their own row.
func (r *Repo) UpdateUser(ctx context.Context, p policy.Principal, id string, patch UserPatch) (user.User, error) {
	if err := r.pol.AuthorizeRow(p, policy.TableUsers, policy.OpUpdate, id); err != nil {
		return user.User{}, err
	}
	var u user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if f := patch.fields(); len(f) > 0 {
			if err := tx.Model(&user.User{}).Where("id = ?", id).Updates(f).Error; err != nil {
				return fmt.Errorf("failed to update user: %w", db.Translate(err))
			}
		}
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to update user: %w", db.Translate(err))
		}
		return nil
	})
	return u, err
}

// UpsertCustomer maps a user to the payment processor's customer id.
func (r *Repo) UpsertCustomer(ctx context.Context, p policy.Principal, userID, stripeCustomerID string) (user.Customer, error) {
	if _, err := r.pol.Authorize(p, policy.TableCustomers, policy.OpInsert); err != nil {
		return user.Customer{}, err
	}
	if _, err := r.pol.Authorize(p, policy.TableCustomers, policy.OpUpdate); err != nil {
		return user.Customer{}, err
	}
	c := user.Customer{ID: userID, StripeCustomerID: stripeCustomerID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stripe_customer_id"}),
	}).Create(&c).Error
	if err != nil {
		return user.Customer{}, fmt.Errorf("failed to upsert customer: %w", db.Translate(err))
	}
	return c, nil
}

func (r *Repo) GetCustomer(ctx context.Context, p policy.Principal, userID string) (user.Customer, error) {
	scope, ok := r.pol.ReadScope(p, policy.TableCustomers)
	if !ok {
		return user.Customer{}, fmt.Errorf("failed to get customer: %w", db.ErrNotFound)
	}
	var c user.Customer
	if err := r.db.WithContext(ctx).Scopes(scope).First(&c, "id = ?", userID).Error; err != nil {
		return user.Customer{}, fmt.Errorf("failed to get customer: %w", db.Translate(err))
	}
	return c, nil
}

// FindCustomerByStripeID resolves the processor's customer id back to a user.
func (r *Repo) FindCustomerByStripeID(ctx context.Context, p policy.Principal, stripeCustomerID string) (user.Customer, error) {
	scope, ok := r.pol.ReadScope(p, policy.TableCustomers)
	if !ok {
		return user.Customer{}, fmt.Errorf("failed to find customer: %w", db.ErrNotFound)
	}
	var c user.Customer
	if err := r.db.WithContext(ctx).Scopes(scope).First(&c, "stripe_customer_id = ?", stripeCustomerID).Error; err != nil {
		return user.Customer{}, fmt.Errorf("failed to find customer: %w", db.Translate(err))
	}
	return c, nil
}
