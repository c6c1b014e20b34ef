package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/auth"
	"storefront/internal/policy"
)

func newStreamServer(t *testing.T, b *Broker, p policy.Principal) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(b, time.Hour)
	r.GET("/api/realtime", func(c *gin.Context) {
		c.Set(auth.CtxPrincipalKey, p)
		c.Next()
	}, h.Stream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// nextEvent reads until a complete event block and returns its name and data.
func nextEvent(t *testing.T, sc *bufio.Scanner) (string, string) {
	t.Helper()
	var name, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return "", ""
}

func TestStream_DeliversVisibleEvents(t *testing.T) {
	b := NewBroker(policy.Default(), 8, nil)
	srv := newStreamServer(t, b, policy.Anonymous())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/realtime?tables=orders,products", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(Event{Table: policy.TableOrders, Type: EventInsert, OwnerID: "u1"})
	b.Publish(Event{Table: policy.TableProducts, Type: EventUpdate, Record: map[string]any{"name": "Tee"}})

	name, data := nextEvent(t, bufio.NewScanner(resp.Body))
	assert.Equal(t, "products", name)
	assert.Contains(t, data, `"Tee"`)
	assert.Contains(t, data, `"UPDATE"`)

	cancel()
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStream_RejectsUnknownTable(t *testing.T) {
	b := NewBroker(policy.Default(), 8, nil)
	srv := newStreamServer(t, b, policy.Anonymous())

	resp, err := http.Get(srv.URL + "/api/realtime?tables=customers")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, b.SubscriberCount())
}
