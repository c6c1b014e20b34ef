package pricing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"storefront/internal/auth"
	"storefront/internal/domain/price"
	"storefront/internal/httperr"
)

type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

// PriceReq is the body of POST /api/admin/prices and of price.upserted
// webhooks.
type PriceReq struct {
	ID               string            `json:"id" binding:"required"`
	ProductVariantID int64             `json:"product_variant_id" binding:"required"`
	Active           *bool             `json:"active"`
	Description      *string           `json:"description"`
	UnitAmount       int64             `json:"unit_amount"`
	Currency         string            `json:"currency" binding:"required"`
	Type             price.Type        `json:"type"`
	Interval         *price.Interval   `json:"interval"`
	IntervalCount    *int              `json:"interval_count"`
	TrialPeriodDays  *int              `json:"trial_period_days"`
	Metadata         datatypes.JSONMap `json:"metadata"`
}

func (r PriceReq) Price() price.Price {
	typ := r.Type
	if typ == "" {
		typ = price.TypeOneTime
	}
	return price.Price{
		ID:               r.ID,
		ProductVariantID: r.ProductVariantID,
		Active:           r.Active == nil || *r.Active,
		Description:      r.Description,
		UnitAmount:       r.UnitAmount,
		Currency:         r.Currency,
		Type:             typ,
		Interval:         r.Interval,
		IntervalCount:    r.IntervalCount,
		TrialPeriodDays:  r.TrialPeriodDays,
		Metadata:         r.Metadata,
	}
}

func (h *Handler) AdminList(c *gin.Context) {
	variantID, ok := httperr.QueryID(c, "product_variant_id")
	if !ok {
		return
	}
	items, err := h.repo.ListPrices(c.Request.Context(), auth.PrincipalFrom(c), ListFilter{
		ProductVariantID: variantID,
		ActiveOnly:       c.Query("active") == "true",
	})
	if err != nil {
		httperr.Abort(c, err, "failed to list prices")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) AdminGet(c *gin.Context) {
	p, err := h.repo.GetPrice(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httperr.Abort(c, err, "failed to get price")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) AdminUpsert(c *gin.Context) {
	var req PriceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	p, err := h.repo.UpsertPrice(c.Request.Context(), auth.PrincipalFrom(c), req.Price())
	if err != nil {
		httperr.Abort(c, err, "failed to save price")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) AdminDeactivate(c *gin.Context) {
	p, err := h.repo.DeactivatePrice(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httperr.Abort(c, err, "failed to deactivate price")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) AdminDelete(c *gin.Context) {
	if err := h.repo.DeletePrice(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id")); err != nil {
		httperr.Abort(c, err, "failed to delete price")
		return
	}
	c.Status(http.StatusNoContent)
}
