package catalog

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"storefront/internal/auth"
	"storefront/internal/domain/product"
	"storefront/internal/httperr"
	"storefront/internal/policy"
)

type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

// Public reads

func (h *Handler) ListSizes(c *gin.Context) {
	items, err := h.repo.ListSizes(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		httperr.Abort(c, err, "failed to list sizes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ListColors(c *gin.Context) {
	items, err := h.repo.ListColors(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		httperr.Abort(c, err, "failed to list colors")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ListProducts(c *gin.Context) {
	items, err := h.repo.ListProducts(c.Request.Context(), auth.PrincipalFrom(c), true)
	if err != nil {
		httperr.Abort(c, err, "failed to list products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Public: product details with variants
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := httperr.ParamID(c, "id")
	if !ok {
		return
	}
	p := auth.PrincipalFrom(c)
	d, err := h.repo.GetProduct(c.Request.Context(), p, id, p.Role == policy.RoleAdmin)
	if err != nil {
		httperr.Abort(c, err, "failed to get product")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) ListVariants(c *gin.Context) {
	productID, ok := httperr.QueryID(c, "product_id")
	if !ok {
		return
	}
	items, err := h.repo.ListVariants(c.Request.Context(), auth.PrincipalFrom(c), productID)
	if err != nil {
		httperr.Abort(c, err, "failed to list variants")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Admin

func (h *Handler) AdminListProducts(c *gin.Context) {
	items, err := h.repo.ListProducts(c.Request.Context(), auth.PrincipalFrom(c), false)
	if err != nil {
		httperr.Abort(c, err, "failed to list products")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type CreateSizeReq struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category"`
	System   string `json:"system"`
}

func (h *Handler) AdminCreateSize(c *gin.Context) {
	var req CreateSizeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	created, err := h.repo.CreateSize(c.Request.Context(), auth.PrincipalFrom(c), product.Size{
		Name: req.Name, Category: req.Category, System: req.System,
	})
	if err != nil {
		httperr.Abort(c, err, "failed to create size")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) AdminUpdateSize(c *gin.Context) {
	id, ok := httperr.ParamID(c, "id")
	if !ok {
		return
	}
	var req SizePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	updated, err := h.repo.UpdateSize(c.Request.Context(), auth.PrincipalFrom(c), id, req)
	if err != nil {
		httperr.Abort(c, err, "failed to update size")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) AdminDeleteSize(c *gin.Context) {
	h.deleteByID(c, h.repo.DeleteSize, "failed to delete size")
}

type CreateColorReq struct {
	Name    string `json:"name" binding:"required"`
	HexCode string `json:"hex_code"`
}

func (h *Handler) AdminCreateColor(c *gin.Context) {
	var req CreateColorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	created, err := h.repo.CreateColor(c.Request.Context(), auth.PrincipalFrom(c), product.Color{
		Name: req.Name, HexCode: req.HexCode,
	})
	if err != nil {
		httperr.Abort(c, err, "failed to create color")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) AdminUpdateColor(c *gin.Context) {
	id, ok := httperr.ParamID(c, "id")
	if !ok {
		return
	}
	var req ColorPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	updated, err := h.repo.UpdateColor(c.Request.Context(), auth.PrincipalFrom(c), id, req)
	if err != nil {
		httperr.Abort(c, err, "failed to update color")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) AdminDeleteColor(c *gin.Context) {
	h.deleteByID(c, h.repo.DeleteColor, "failed to delete color")
}

type CreateProductReq struct {
	Active      *bool             `json:"active"`
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Metadata    datatypes.JSONMap `json:"metadata"`

	Variants []CreateVariantReq `json:"variants"`
}

type CreateVariantReq struct {
	ProductID int64 `json:"product_id"`
	SizeID    int64 `json:"size_id" binding:"required"`
	ColorID   int64 `json:"color_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// Admin: create product + variants
func (h *Handler) AdminCreateProduct(c *gin.Context) {
	var req CreateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	in := CreateProductInput{
		Active:      req.Active == nil || *req.Active,
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Metadata:    req.Metadata,
	}
	for _, v := range req.Variants {
		in.Variants = append(in.Variants, CreateVariantInput{SizeID: v.SizeID, ColorID: v.ColorID, Quantity: v.Quantity})
	}

	d, err := h.repo.CreateProduct(c.Request.Context(), auth.PrincipalFrom(c), in)
	if err != nil {
		httperr.Abort(c, err, "failed to create product")
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) AdminUpdateProduct(c *gin.Context) {
	id, ok := httperr.ParamID(c, "id")
	if !ok {
		return
	}
	var req ProductPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	updated, err := h.repo.UpdateProduct(c.Request.Context(), auth.PrincipalFrom(c), id, req)
	if err != nil {
		httperr.Abort(c, err, "failed to update product")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) AdminDeleteProduct(c *gin.Context) {
	h.deleteByID(c, h.repo.DeleteProduct, "failed to delete product")
}

func (h *Handler) AdminCreateVariant(c *gin.Context) {
	var req CreateVariantReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	v, err := h.repo.CreateVariant(c.Request.Context(), auth.PrincipalFrom(c), product.Variant{
		ProductID: req.ProductID, SizeID: req.SizeID, ColorID: req.ColorID, Quantity: req.Quantity,
	})
	if err != nil {
		httperr.Abort(c, err, "failed to create variant")
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *Handler) AdminUpdateVariant(c *gin.Context) {
	id, ok := httperr.ParamID(c, "id")
	if !ok {
		return
	}
	var req VariantPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	v, err := h.repo.UpdateVariant(c.Request.Context(), auth.PrincipalFrom(c), id, req)
	if err != nil {
		httperr.Abort(c, err, "failed to update variant")
		return
	}
	c.JSON(http.StatusOK, v)
}

type AdjustStockReq struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *Handler) AdminAdjustStock(c *gin.Context) {
	id, ok := httperr.ParamID(c, "id")
	if !ok {
		return
	}
	var req AdjustStockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	v, err := h.repo.AdjustStock(c.Request.Context(), auth.PrincipalFrom(c), id, req.Delta)
	if err != nil {
		httperr.Abort(c, err, "failed to adjust stock")
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) AdminDeleteVariant(c *gin.Context) {
	h.deleteByID(c, h.repo.DeleteVariant, "failed to delete variant")
}

func (h *Handler) AdminListProductChanges(c *gin.Context) {
	productID, ok := httperr.QueryID(c, "product_id")
	if !ok {
		return
	}
	items, err := h.repo.ListProductChanges(c.Request.Context(), auth.PrincipalFrom(c), productID)
	if err != nil {
		httperr.Abort(c, err, "failed to list product changes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type deleteFunc func(ctx context.Context, p policy.Principal, id int64) error

func (h *Handler) deleteByID(c *gin.Context, del deleteFunc, msg string) {
	id, ok := httperr.ParamID(c, "id")
	if !ok {
		return
	}
	if err := del(c.Request.Context(), auth.PrincipalFrom(c), id); err != nil {
		httperr.Abort(c, err, msg)
		return
	}
	c.Status(http.StatusNoContent)
}
