// Package webhooks receives server-to-server notifications from the auth
// provider and the payment processor. Every route runs as service_role.
package webhooks

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gorm.io/datatypes"

	"storefront/internal/accounts"
	"storefront/internal/auth"
	"storefront/internal/catalog"
	"storefront/internal/domain/order"
	"storefront/internal/domain/product"
	"storefront/internal/httperr"
	"storefront/internal/orders"
	"storefront/internal/pricing"
)

const (
	EventPriceUpserted         = "price.upserted"
	EventPriceDeleted          = "price.deleted"
	EventCustomerUpserted      = "customer.upserted"
	EventOrderCreated          = "order.created"
	EventOrderStatusChanged    = "order.status_changed"
	EventProductChangeAppended = "product_change.appended"
)

type Deps struct {
	Accounts *accounts.Repo
	Catalog  *catalog.Repo
	Pricing  *pricing.Repo
	Orders   *orders.Repo
	Log      *slog.Logger
}

type Handler struct {
	d Deps
}

func NewHandler(d Deps) *Handler {
	if d.Log == nil {
		d.Log = slog.New(slog.DiscardHandler)
	}
	return &Handler{d: d}
}

type IdentityReq struct {
	ID              string            `json:"id" binding:"required"`
	Email           string            `json:"email"`
	RawUserMetaData datatypes.JSONMap `json:"raw_user_meta_data"`
}

// Identity handles POST /api/webhooks/identities.
func (h *Handler) Identity(c *gin.Context) {
	var req IdentityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	u, err := h.d.Accounts.RegisterIdentity(c.Request.Context(), auth.PrincipalFrom(c), accounts.RegisterInput{
		ID:       req.ID,
		Email:    req.Email,
		Metadata: req.RawUserMetaData,
	})
	if err != nil {
		h.fail(c, "identity", err, "failed to register identity")
		return
	}
	c.JSON(http.StatusCreated, u)
}

type EventReq struct {
	ID   string          `json:"id"`
	Type string          `json:"type" binding:"required"`
	Data json.RawMessage `json:"data" binding:"required"`
}

type priceDeletedData struct {
	ID string `json:"id" binding:"required"`
}

type customerData struct {
	UserID           string `json:"user_id" binding:"required"`
	StripeCustomerID string `json:"stripe_customer_id" binding:"required"`
}

type orderItemData struct {
	ProductVariantID int64  `json:"product_variant_id" binding:"required"`
	Quantity         int    `json:"quantity"`
	UnitAmount       int64  `json:"unit_amount"`
	Currency         string `json:"currency"`
}

type orderCreatedData struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id" binding:"required"`
	Status      order.Status      `json:"status"`
	Currency    string            `json:"currency" binding:"required"`
	TotalAmount *int64            `json:"total_amount"`
	Items       []orderItemData   `json:"items"`
	Changelog   datatypes.JSONMap `json:"changelog"`
}

type statusChangedData struct {
	OrderID   string            `json:"order_id" binding:"required"`
	Status    order.Status      `json:"status" binding:"required"`
	Changelog datatypes.JSONMap `json:"changelog"`
}

type productChangeData struct {
	ProductID        *int64            `json:"product_id"`
	ProductVariantID *int64            `json:"product_variant_id"`
	Changelog        datatypes.JSONMap `json:"changelog" binding:"required"`
}

func decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(dst)
}

// Payment handles POST /api/webhooks/payments. The body is an envelope
// {"type": ..., "data": {...}} and data is decoded per type.
func (h *Handler) Payment(c *gin.Context) {
	var req EventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctx := c.Request.Context()
	p := auth.PrincipalFrom(c)
	bad := func() { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + req.Type + " payload"}) }

	switch req.Type {
	case EventPriceUpserted:
		var d pricing.PriceReq
		if err := decode(req.Data, &d); err != nil {
			bad()
			return
		}
		out, err := h.d.Pricing.UpsertPrice(ctx, p, d.Price())
		if err != nil {
			h.fail(c, req.Type, err, "failed to save price")
			return
		}
		c.JSON(http.StatusOK, out)

	case EventPriceDeleted:
		var d priceDeletedData
		if err := decode(req.Data, &d); err != nil {
			bad()
			return
		}
		if err := h.d.Pricing.DeletePrice(ctx, p, d.ID); err != nil {
			h.fail(c, req.Type, err, "failed to delete price")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": d.ID})

	case EventCustomerUpserted:
		var d customerData
		if err := decode(req.Data, &d); err != nil {
			bad()
			return
		}
		out, err := h.d.Accounts.UpsertCustomer(ctx, p, d.UserID, d.StripeCustomerID)
		if err != nil {
			h.fail(c, req.Type, err, "failed to save customer")
			return
		}
		c.JSON(http.StatusOK, out)

	case EventOrderCreated:
		var d orderCreatedData
		if err := decode(req.Data, &d); err != nil {
			bad()
			return
		}
		in := orders.CreateOrderInput{
			ID:        d.ID,
			UserID:    d.UserID,
			Status:    d.Status,
			Currency:  d.Currency,
			Total:     d.TotalAmount,
			Changelog: d.Changelog,
		}
		for _, it := range d.Items {
			in.Items = append(in.Items, orders.ItemInput{
				ProductVariantID: it.ProductVariantID,
				Quantity:         it.Quantity,
				UnitAmount:       it.UnitAmount,
				Currency:         it.Currency,
			})
		}
		out, err := h.d.Orders.CreateOrder(ctx, p, in)
		if err != nil {
			h.fail(c, req.Type, err, "failed to create order")
			return
		}
		c.JSON(http.StatusCreated, out)

	case EventOrderStatusChanged:
		var d statusChangedData
		if err := decode(req.Data, &d); err != nil {
			bad()
			return
		}
		out, err := h.d.Orders.UpdateStatus(ctx, p, d.OrderID, d.Status, d.Changelog)
		if err != nil {
			h.fail(c, req.Type, err, "failed to update order")
			return
		}
		c.JSON(http.StatusOK, out)

	case EventProductChangeAppended:
		var d productChangeData
		if err := decode(req.Data, &d); err != nil {
			bad()
			return
		}
		out, err := h.d.Catalog.AppendProductChange(ctx, p, product.Change{
			ProductID:        d.ProductID,
			ProductVariantID: d.ProductVariantID,
			Changelog:        d.Changelog,
		})
		if err != nil {
			h.fail(c, req.Type, err, "failed to record product change")
			return
		}
		c.JSON(http.StatusCreated, out)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported event type"})
	}
}

func (h *Handler) fail(c *gin.Context, kind string, err error, msg string) {
	h.d.Log.Warn("webhook rejected", "kind", kind, "error", err)
	httperr.Abort(c, err, msg)
}
