package accounts

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

func (h *Handler) Me(c *gin.Context) {
	p := auth.PrincipalFrom(c)
	u, err := h.repo.GetUser(c.Request.Context(), p, p.UserID)
	if err != nil {
		httperr.Abort(c, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req UserPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	p := auth.PrincipalFrom(c)
	u, err := h.repo.UpdateUser(c.Request.Context(), p, p.UserID, req)
	if err != nil {
		httperr.Abort(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, u)
}
