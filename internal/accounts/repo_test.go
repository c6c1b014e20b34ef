package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"storefront/internal/db"
	"storefront/internal/db/dbtest"
	"storefront/internal/domain/user"
	"storefront/internal/policy"
)

func TestRegisterIdentity_CreatesProfile(t *testing.T) {
	gdb := dbtest.New(t)
	repo := NewRepo(gdb, policy.Default())
	ctx := context.Background()

	u, err := repo.RegisterIdentity(ctx, policy.Service(), RegisterInput{
		ID:       "u1",
		Email:    "Ada@Example.com",
		Metadata: datatypes.JSONMap{"full_name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	require.NotNil(t, u.FullName)
	assert.Equal(t, "Ada", *u.FullName)
	assert.Nil(t, u.AvatarURL)

	var ident user.Identity
	require.NoError(t, gdb.First(&ident, "id = ?", "u1").Error)
	assert.Equal(t, "ada@example.com", ident.Email)

	bare, err := repo.RegisterIdentity(ctx, policy.Service(), RegisterInput{ID: "u2"})
	require.NoError(t, err)
	assert.Nil(t, bare.FullName)
	assert.Nil(t, bare.AvatarURL)
}

func TestRegisterIdentity_Rejects(t *testing.T) {
	gdb := dbtest.New(t)
	repo := NewRepo(gdb, policy.Default())
	ctx := context.Background()

	_, err := repo.RegisterIdentity(ctx, policy.Admin("a1"), RegisterInput{ID: "u1"})
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	_, err = repo.RegisterIdentity(ctx, policy.Service(), RegisterInput{ID: "u1"})
	require.NoError(t, err)
	_, err = repo.RegisterIdentity(ctx, policy.Service(), RegisterInput{ID: "u1"})
	require.ErrorIs(t, err, db.ErrUniqueViolation)

	var n int64
	require.NoError(t, gdb.Model(&user.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestUsersAreSelfOwned(t *testing.T) {
	gdb := dbtest.New(t)
	repo := NewRepo(gdb, policy.Default())
	ctx := context.Background()
	dbtest.SeedIdentity(t, gdb, "u1")
	dbtest.SeedIdentity(t, gdb, "u2")

	_, err := repo.GetUser(ctx, policy.User("u2"), "u1")
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = repo.GetUser(ctx, policy.Anonymous(), "u1")
	require.ErrorIs(t, err, db.ErrNotFound)

	name := "Grace"
	_, err = repo.UpdateUser(ctx, policy.User("u2"), "u1", UserPatch{FullName: &name})
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	u, err := repo.UpdateUser(ctx, policy.User("u1"), "u1", UserPatch{
		FullName:       &name,
		BillingAddress: datatypes.JSONMap{"city": "London"},
	})
	require.NoError(t, err)
	require.NotNil(t, u.FullName)
	assert.Equal(t, "Grace", *u.FullName)
	assert.Equal(t, "London", u.BillingAddress["city"])

	got, err := repo.GetUser(ctx, policy.User("u1"), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", *got.FullName)
}

func TestCustomersAreServiceOnly(t *testing.T) {
	gdb := dbtest.New(t)
	repo := NewRepo(gdb, policy.Default())
	ctx := context.Background()
	dbtest.SeedIdentity(t, gdb, "u1")

	_, err := repo.UpsertCustomer(ctx, policy.User("u1"), "u1", "cus_1")
	require.ErrorIs(t, err, policy.ErrPermissionDenied)

	_, err = repo.UpsertCustomer(ctx, policy.Service(), "u1", "cus_1")
	require.NoError(t, err)
	c, err := repo.UpsertCustomer(ctx, policy.Service(), "u1", "cus_2")
	require.NoError(t, err)
	assert.Equal(t, "cus_2", c.StripeCustomerID)

	_, err = repo.UpsertCustomer(ctx, policy.Service(), "ghost", "cus_3")
	require.ErrorIs(t, err, db.ErrForeignKeyViolation)

	_, err = repo.GetCustomer(ctx, policy.User("u1"), "u1")
	require.ErrorIs(t, err, db.ErrNotFound)

	got, err := repo.FindCustomerByStripeID(ctx, policy.Service(), "cus_2")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestDeleteIdentityCascades(t *testing.T) {
	gdb := dbtest.New(t)
	repo := NewRepo(gdb, policy.Default())
	ctx := context.Background()
	dbtest.SeedIdentity(t, gdb, "u1")
	_, err := repo.UpsertCustomer(ctx, policy.Service(), "u1", "cus_1")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteIdentity(ctx, policy.Service(), "u1"))
	require.ErrorIs(t, repo.DeleteIdentity(ctx, policy.Service(), "u1"), db.ErrNotFound)

	var users, customers int64
	require.NoError(t, gdb.Model(&user.User{}).Count(&users).Error)
	require.NoError(t, gdb.Model(&user.Customer{}).Count(&customers).Error)
	assert.Zero(t, users)
	assert.Zero(t, customers)
}
