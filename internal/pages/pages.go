// Package pages renders the storefront's HTML pages. Every page is wrapped in
// the root layout, whose cart-context container holds the client-side cart.
package pages

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/auth"
	"storefront/internal/catalog"
	"storefront/internal/domain/product"
	"storefront/internal/httperr"
)

//go:embed templates/*.html
var files embed.FS

// CartKey names the browser storage slot the cart script reads.
const CartKey = "storefront.cart"

// Templates parses the embedded page set. Install it with
// gin.Engine.SetHTMLTemplate.
func Templates() (*template.Template, error) {
	return template.ParseFS(files, "templates/*.html")
}

type view struct {
	Title    string
	CartKey  string
	Year     int
	Products []product.Product
}

func newView(title string) view {
	return view{Title: title, CartKey: CartKey, Year: time.Now().Year()}
}

type Handler struct {
	catalog *catalog.Repo
}

func NewHandler(catalog *catalog.Repo) *Handler {
	return &Handler{catalog: catalog}
}

func (h *Handler) Home(c *gin.Context) {
	items, err := h.catalog.ListProducts(c.Request.Context(), auth.PrincipalFrom(c), true)
	if err != nil {
		httperr.Abort(c, err, "failed to load products")
		return
	}
	v := newView("Shop")
	v.Products = items
	c.HTML(http.StatusOK, "home.html", v)
}

func (h *Handler) Help(c *gin.Context) {
	c.HTML(http.StatusOK, "help.html", newView("Help"))
}

func (h *Handler) Terms(c *gin.Context) {
	c.HTML(http.StatusOK, "terms.html", newView("Terms of Service"))
}
