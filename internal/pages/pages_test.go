package pages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/catalog"
	"storefront/internal/db/dbtest"
	"storefront/internal/policy"
)

func newRouter(t *testing.T) (*gin.Engine, *catalog.Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tmpl, err := Templates()
	require.NoError(t, err)

	repo := catalog.NewRepo(dbtest.New(t), policy.Default(), nil)
	h := NewHandler(repo)
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/", h.Home)
	r.GET("/help", h.Help)
	r.GET("/terms", h.Terms)
	return r, repo
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestStaticPages(t *testing.T) {
	r, _ := newRouter(t)

	for path, heading := range map[string]string{
		"/help":  "<h1>Help</h1>",
		"/terms": "<h1>Terms of Service</h1>",
	} {
		w := get(r, path)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		body := w.Body.String()
		assert.Contains(t, body, heading)
		assert.Contains(t, body, `data-cart-context="storefront.cart"`)
		assert.Contains(t, body, "</html>")
	}
}

func TestHomeListsActiveProducts(t *testing.T) {
	r, repo := newRouter(t)
	ctx := context.Background()

	w := get(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No products yet.")

	_, err := repo.CreateProduct(ctx, policy.Admin("a1"), catalog.CreateProductInput{Active: true, Name: "Tee"})
	require.NoError(t, err)
	_, err = repo.CreateProduct(ctx, policy.Admin("a1"), catalog.CreateProductInput{Active: false, Name: "Draft <hoodie>"})
	require.NoError(t, err)

	body := get(r, "/").Body.String()
	assert.Contains(t, body, "Tee")
	assert.NotContains(t, body, "Draft")
	assert.Contains(t, body, `data-cart-context="storefront.cart"`)
}
