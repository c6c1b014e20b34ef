package orders

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/httperr"
)

type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) ListMine(c *gin.Context) {
	items, err := h.repo.ListOrders(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		httperr.Abort(c, err, "failed to list orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) Get(c *gin.Context) {
	d, err := h.repo.GetOrder(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httperr.Abort(c, err, "failed to get order")
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListItems serves GET /api/order-items?order_id=...; items of someone
// else's order come back as an empty list.
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.repo.ListOrderItems(c.Request.Context(), auth.PrincipalFrom(c), c.Query("order_id"))
	if err != nil {
		httperr.Abort(c, err, "failed to list order items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) AdminListChanges(c *gin.Context) {
	items, err := h.repo.ListOrderChanges(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httperr.Abort(c, err, "failed to list order changes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
