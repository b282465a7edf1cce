package commerceapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/auth"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWT = config.JWTConfig{Secret: "api-secret"}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Params{
		Logger: logger.New(logger.Options{ServiceName: "commerce-api-test", Output: io.Discard}),
		JWT:    testJWT,
	})
	require.NoError(t, err)
	return srv
}

func bearer(t *testing.T, account string) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: account})
	require.NoError(t, err)
	return "Bearer " + token
}

func call(t *testing.T, srv *Server, method, path, authz, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec.Code, payload
}

func cartItems(t *testing.T, payload map[string]any) types.CartItems {
	t.Helper()
	raw, err := json.Marshal(payload["cart"].(map[string]any)["items"])
	require.NoError(t, err)
	var items types.CartItems
	require.NoError(t, json.Unmarshal(raw, &items))
	return items
}

func TestRoutesRequireBearerToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	status, payload := call(t, srv, http.MethodGet, "/api/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, payload["success"])

	status, _ = call(t, srv, http.MethodGet, "/api/cart", "Bearer not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	status, payload := call(t, newTestServer(t), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, payload["success"])
}

func TestAddToCartIsIdempotentPerLine(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	authz := bearer(t, "acct-1")

	status, _ := call(t, srv, http.MethodPost, "/api/cart", authz, `{"productId":"P1","quantity":1,"color":{"name":"red"}}`)
	require.Equal(t, http.StatusOK, status)
	status, payload := call(t, srv, http.MethodPost, "/api/cart", authz, `{"productId":"P1","quantity":2,"color":{"name":"Red"}}`)
	require.Equal(t, http.StatusOK, status)

	items := cartItems(t, payload)
	require.Len(t, items, 1)
	assert.Equal(t, "P1::Red", items[0].Key)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Linen shirt", items[0].Name)
	assert.Equal(t, "#c0392b", items[0].Color.Code)

	lines := payload["cart"].(map[string]any)["items"].([]any)
	assert.NotEmpty(t, lines[0].(map[string]any)["lineId"])
}

func TestCartsAreIsolatedPerAccount(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	call(t, srv, http.MethodPost, "/api/cart", bearer(t, "acct-1"), `{"productId":"P2","quantity":1,"color":null}`)

	_, payload := call(t, srv, http.MethodGet, "/api/cart", bearer(t, "acct-2"), "")
	assert.Empty(t, cartItems(t, payload))
	assert.Len(t, srv.Cart("acct-1"), 1)
}

func TestAddToCartValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	authz := bearer(t, "acct-1")

	cases := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"unknown color", `{"productId":"P1","quantity":1,"color":{"name":"Plaid"}}`, http.StatusBadRequest, "invalid color variant"},
		{"unknown product", `{"productId":"P404","quantity":1}`, http.StatusNotFound, "product not found"},
		{"zero quantity", `{"productId":"P1","quantity":0}`, http.StatusBadRequest, "quantity must be at least 1"},
		{"unknown field", `{"productId":"P1","quantity":1,"extra":true}`, http.StatusBadRequest, "invalid request body"},
		{"line key as product", `{"productId":"P1::Red","quantity":1}`, http.StatusBadRequest, "productId must be a product id"},
		{"empty body", ``, http.StatusBadRequest, "request body is required"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			status, payload := call(t, srv, http.MethodPost, "/api/cart", authz, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, false, payload["success"])
			assert.Contains(t, payload["error"], tc.msg)
		})
	}
}

func TestUpdateAndRemoveCartLines(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	authz := bearer(t, "acct-1")
	require.NoError(t, srv.SeedCart("acct-1",
		types.NewCartItem("P1", 1, &types.ColorVariant{Name: "Blue"}, types.ItemMeta{}),
		types.NewCartItem("P2", 1, nil, types.ItemMeta{}),
	))

	status, payload := call(t, srv, http.MethodPut, "/api/cart", authz, `{"productId":"P2","quantity":5,"color":null}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5, cartItems(t, payload)[1].Quantity)

	status, _ = call(t, srv, http.MethodPut, "/api/cart", authz, `{"productId":"P4","quantity":5,"color":null}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, srv, http.MethodDelete, "/api/cart/item", authz, `{"productId":"P1"}`)
	assert.Equal(t, http.StatusOK, status, "a colorless removal falls back to every line of the product")
	assert.Equal(t, []string{"P2::default"}, keys(srv.Cart("acct-1")))

	status, _ = call(t, srv, http.MethodDelete, "/api/cart/item", authz, `{"productId":"P1"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, srv, http.MethodDelete, "/api/cart", authz, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, srv.Cart("acct-1"))
}

func TestWishlistDuplicateIsDomainError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	authz := bearer(t, "acct-1")

	status, _ := call(t, srv, http.MethodPost, "/api/wishlist", authz, `{"productId":"P3"}`)
	require.Equal(t, http.StatusOK, status)
	status, payload := call(t, srv, http.MethodPost, "/api/wishlist", authz, `{"productId":"P3"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Product already in wishlist", payload["error"])

	_, payload = call(t, srv, http.MethodGet, "/api/wishlist", authz, "")
	wishlist := payload["wishlist"].([]any)
	require.Len(t, wishlist, 1)
	assert.Equal(t, "Ceramic mug", wishlist[0].(map[string]any)["name"])

	status, _ = call(t, srv, http.MethodDelete, "/api/wishlist", authz, `{"productId":"P3"}`)
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, srv, http.MethodDelete, "/api/wishlist", authz, `{"productId":"P3"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, srv.Wishlist("acct-1"))
}

func TestInjectedFaultIsServedOnce(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	authz := bearer(t, "acct-1")
	srv.InjectFault(http.MethodGet, "/api/cart", Fault{Status: http.StatusServiceUnavailable, Message: "maintenance"})

	status, payload := call(t, srv, http.MethodGet, "/api/cart", authz, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "maintenance", payload["error"])

	status, _ = call(t, srv, http.MethodGet, "/api/cart", authz, "")
	assert.Equal(t, http.StatusOK, status)
}

func keys(items types.CartItems) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Key)
	}
	return out
}
