package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/accounts"
	"storefront/internal/auth"
	"storefront/internal/catalog"
	"storefront/internal/db/dbtest"
	"storefront/internal/domain/order"
	"storefront/internal/domain/product"
	"storefront/internal/domain/user"
	"storefront/internal/orders"
	"storefront/internal/policy"
	"storefront/internal/pricing"
)

type fixture struct {
	gdb     *gorm.DB
	deps    Deps
	variant product.Variant
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb := dbtest.New(t)
	pol := policy.Default()
	return fixture{
		gdb: gdb,
		deps: Deps{
			Accounts: accounts.NewRepo(gdb, pol),
			Catalog:  catalog.NewRepo(gdb, pol, nil),
			Pricing:  pricing.NewRepo(gdb, pol, nil),
			Orders:   orders.NewRepo(gdb, pol, nil),
		},
		variant: dbtest.SeedVariant(t, gdb, "tee", 5),
	}
}

func (f fixture) router(p policy.Principal) *gin.Engine {
	h := NewHandler(f.deps)
	r := gin.New()
	g := r.Group("/api/webhooks", func(c *gin.Context) {
		c.Set(auth.CtxPrincipalKey, p)
		c.Next()
	})
	g.POST("/identities", h.Identity)
	g.POST("/payments", h.Payment)
	return r
}

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func event(typ string, data any) gin.H {
	return gin.H{"id": "evt_1", "type": typ, "data": data}
}

func TestIdentityWebhook(t *testing.T) {
	f := newFixture(t)
	r := f.router(policy.Service())

	w := post(t, r, "/api/webhooks/identities", gin.H{
		"id": "u1", "email": "ada@example.com", "raw_user_meta_data": gin.H{"full_name": "Ada"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var u user.User
	require.NoError(t, f.gdb.First(&u, "id = ?", "u1").Error)
	require.NotNil(t, u.FullName)
	assert.Equal(t, "Ada", *u.FullName)

	w = post(t, r, "/api/webhooks/identities", gin.H{"id": "u1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(t, r, "/api/webhooks/identities", gin.H{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentWebhook_Lifecycle(t *testing.T) {
	f := newFixture(t)
	r := f.router(policy.Service())
	dbtest.SeedIdentity(t, f.gdb, "u1")

	w := post(t, r, "/api/webhooks/payments", event(EventCustomerUpserted, gin.H{
		"user_id": "u1", "stripe_customer_id": "cus_1",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = post(t, r, "/api/webhooks/payments", event(EventPriceUpserted, gin.H{
		"id": "price_1", "product_variant_id": f.variant.ID, "unit_amount": 1500, "currency": "usd",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = post(t, r, "/api/webhooks/payments", event(EventOrderCreated, gin.H{
		"id": "order_1", "user_id": "u1", "currency": "usd",
		"items": []gin.H{{"product_variant_id": f.variant.ID, "quantity": 2, "unit_amount": 1500}},
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(t, r, "/api/webhooks/payments", event(EventOrderStatusChanged, gin.H{
		"order_id": "order_1", "status": "created", "changelog": gin.H{"payment_intent": "pi_1"},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = post(t, r, "/api/webhooks/payments", event(EventOrderStatusChanged, gin.H{
		"order_id": "order_1", "status": "pending_payment",
	}))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(t, r, "/api/webhooks/payments", event(EventProductChangeAppended, gin.H{
		"product_variant_id": f.variant.ID, "changelog": gin.H{"op": "restock", "quantity": 10},
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(t, r, "/api/webhooks/payments", event(EventPriceDeleted, gin.H{"id": "price_1"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx := context.Background()
	o, err := f.deps.Orders.GetOrder(ctx, policy.User("u1"), "order_1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCreated, o.Status)
	assert.EqualValues(t, 3000, o.TotalAmount)

	changes, err := f.deps.Orders.ListOrderChanges(ctx, policy.Admin("a1"), "order_1")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "pi_1", changes[1].Changelog["payment_intent"])

	_, err = f.deps.Pricing.GetPrice(ctx, policy.Service(), "price_1")
	require.Error(t, err)
}

func TestPaymentWebhook_Rejects(t *testing.T) {
	f := newFixture(t)
	r := f.router(policy.Service())

	w := post(t, r, "/api/webhooks/payments", event("invoice.paid", gin.H{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, "/api/webhooks/payments", event(EventPriceUpserted, gin.H{"id": "price_1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, "/api/webhooks/payments", event(EventPriceUpserted, gin.H{
		"id": "price_1", "product_variant_id": f.variant.ID, "unit_amount": 100, "currency": "usdx",
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = post(t, r, "/api/webhooks/payments", event(EventProductChangeAppended, gin.H{
		"changelog": gin.H{"op": "noop"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	admin := f.router(policy.Admin("a1"))
	w = post(t, admin, "/api/webhooks/payments", event(EventCustomerUpserted, gin.H{
		"user_id": "u1", "stripe_customer_id": "cus_1",
	}))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
