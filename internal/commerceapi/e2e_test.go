package commerceapi_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/commerceapi"
	"github.com/angelmondragon/packfinderz-cartsync/internal/coordinator"
	"github.com/angelmondragon/packfinderz-cartsync/internal/localstore"
	"github.com/angelmondragon/packfinderz-cartsync/internal/remote"
	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/auth"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var e2eJWT = config.JWTConfig{Secret: "e2e-secret", Issuer: "auth.example"}

type stack struct {
	api   *commerceapi.Server
	store *localstore.Store
	coord *coordinator.Coordinator
	cart  *remote.CartClient
}

func newStack(t *testing.T, timeouts remote.Timeouts) *stack {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "e2e", Output: io.Discard})

	api, err := commerceapi.New(commerceapi.Params{Logger: logg, JWT: e2eJWT})
	require.NoError(t, err)
	httpSrv := httptest.NewServer(api)
	t.Cleanup(httpSrv.Close)

	store, err := localstore.New(localstore.Params{Backend: localstore.NewMemoryBackend(0), Logger: logg})
	require.NoError(t, err)

	s := &stack{api: api, store: store}
	client, err := remote.NewClient(httpSrv.URL+"/api",
		remote.WithLogger(logg),
		remote.WithTimeouts(timeouts),
		remote.WithTokenSource(remote.TokenFunc(func(ctx context.Context) string {
			return s.coord.Token(ctx)
		})),
	)
	require.NoError(t, err)
	s.cart = remote.NewCartClient(client)

	s.coord, err = coordinator.New(coordinator.Params{
		Store:          store,
		CartRemote:     s.cart,
		WishlistRemote: remote.NewWishlistClient(client),
		Logger:         logg,
		JWT:            e2eJWT,
		Sync: config.SyncConfig{
			MergeCallDelay:   time.Millisecond,
			QuantityDebounce: 20 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.coord.Init(context.Background()))
	t.Cleanup(func() { _ = s.coord.Close(context.Background()) })
	return s
}

type noticeLog struct {
	mu      sync.Mutex
	notices []session.Notice
}

func (s *stack) watchNotices() *noticeLog {
	log := &noticeLog{}
	s.coord.Subscribe(func(e session.Event) {
		if e.Notice == nil {
			return
		}
		log.mu.Lock()
		defer log.mu.Unlock()
		log.notices = append(log.notices, *e.Notice)
	})
	return log
}

func (l *noticeLog) all() []session.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]session.Notice(nil), l.notices...)
}

func (s *stack) login(t *testing.T, account string) {
	t.Helper()
	token, err := auth.MintAccessToken(e2eJWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: account})
	require.NoError(t, err)
	require.NoError(t, s.store.WriteString(context.Background(), "authToken", token))
	require.NoError(t, s.coord.Login(context.Background()))
	s.coord.Wait()
}

func TestGuestSessionMergesOverHTTP(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t, remote.Timeouts{})
	require.NoError(t, s.api.SeedCart("acct-1", types.NewCartItem("P1", 1, nil, types.ItemMeta{})))
	require.NoError(t, s.api.SeedWishlist("acct-1", "P3"))

	_, err := s.coord.AddToCart(ctx, "P1", 2, nil, types.ItemMeta{Name: "guest label"})
	require.NoError(t, err)
	_, err = s.coord.AddToWishlist(ctx, "P3", types.ItemMeta{})
	require.NoError(t, err)
	_, err = s.coord.AddToWishlist(ctx, "P4", types.ItemMeta{})
	require.NoError(t, err)

	s.login(t, "acct-1")

	state := s.coord.State()
	assert.Equal(t, enums.SessionContextAuthenticated, state.Context)
	require.Len(t, state.Cart, 1)
	assert.Equal(t, 3, state.Cart[0].Quantity)
	assert.Equal(t, "Linen shirt", state.Cart[0].Name, "server fields win after reconciliation")
	assert.Equal(t, []string{"P3", "P4"}, state.Wishlist.ProductIDs())
	assert.Equal(t, []string{"P3", "P4"}, s.api.Wishlist("acct-1").ProductIDs())
	assert.Equal(t, "148.50", state.CartTotal().StringFixed(2))
}

func TestAuthenticatedMutationsReachServer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t, remote.Timeouts{})
	s.login(t, "acct-2")

	_, err := s.coord.AddToCart(ctx, "P1", 1, &types.ColorVariant{Name: "Blue"}, types.ItemMeta{})
	require.NoError(t, err)
	s.coord.Wait()
	require.NoError(t, s.coord.UpdateQuantity(ctx, "P1::Blue", 1))
	require.NoError(t, s.coord.UpdateQuantity(ctx, "P1::Blue", 1))
	s.coord.Wait()

	server := s.api.Cart("acct-2")
	require.Len(t, server, 1)
	assert.Equal(t, 3, server[0].Quantity)

	_, err = s.coord.ToggleWishlist(ctx, "P2", types.ItemMeta{})
	require.NoError(t, err)
	s.coord.Wait()
	assert.True(t, s.api.Wishlist("acct-2").Contains("P2"))

	require.NoError(t, s.coord.ClearCart(ctx))
	assert.Empty(t, s.api.Cart("acct-2"))
	assert.Empty(t, s.coord.State().Cart)
}

func TestInvalidColorFallsBackToDefaultLine(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t, remote.Timeouts{})
	s.login(t, "acct-3")

	_, err := s.coord.AddToCart(ctx, "P2", 1, &types.ColorVariant{Name: "Green"}, types.ItemMeta{})
	require.NoError(t, err)
	s.coord.Wait()

	assert.Equal(t, "P2::default", s.api.Cart("acct-3")[0].Key)
	assert.Equal(t, "P2::default", s.coord.State().Cart[0].Key)
}

func TestFailedRemoveReloadsCanonicalCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t, remote.Timeouts{})
	require.NoError(t, s.api.SeedCart("acct-4", types.NewCartItem("P1", 1, &types.ColorVariant{Name: "Red"}, types.ItemMeta{})))
	s.login(t, "acct-4")

	s.api.InjectFault(http.MethodDelete, "/api/cart/item", commerceapi.Fault{Status: http.StatusInternalServerError, Message: "boom"})
	s.api.InjectFault(http.MethodDelete, "/api/cart/item", commerceapi.Fault{Status: http.StatusInternalServerError, Message: "boom"})

	require.NoError(t, s.coord.RemoveFromCart(ctx, "P1::Red"))
	assert.Empty(t, s.coord.State().Cart)
	s.coord.Wait()

	cart := s.coord.State().Cart
	require.Len(t, cart, 1, "the server still has the line")
	assert.Equal(t, "P1::Red", cart[0].Key)
}

func TestDuplicateWishlistAddIsSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t, remote.Timeouts{})
	s.login(t, "acct-5")
	require.NoError(t, s.api.SeedWishlist("acct-5", "P4"))

	notices := s.watchNotices()
	_, err := s.coord.AddToWishlist(ctx, "P4", types.ItemMeta{})
	require.NoError(t, err)
	s.coord.Wait()

	assert.Empty(t, notices.all())
	assert.True(t, s.coord.InWishlist("P4"))
}

func TestSlowServerTimesOutAndKeepsLocalState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t, remote.Timeouts{CartMutation: 50 * time.Millisecond})
	s.login(t, "acct-6")
	s.api.InjectFault(http.MethodPost, "/api/cart", commerceapi.Fault{Delay: time.Second})
	notices := s.watchNotices()

	_, err := s.coord.AddToCart(ctx, "P4", 1, nil, types.ItemMeta{})
	require.NoError(t, err)
	s.coord.Wait()

	assert.Len(t, s.coord.State().Cart, 1, "optimistic line survives the failed push")
	require.NotEmpty(t, notices.all())
	assert.Equal(t, enums.NoticeLevelWarning, notices.all()[0].Level)

	server, err := s.cart.FetchAll(remote.WithCallTimeout(ctx, time.Second))
	require.NoError(t, err)
	assert.Empty(t, server)
}

func TestForeignTokenIsRejectedAndDemotes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStack(t, remote.Timeouts{})
	s.login(t, "acct-7")

	token, err := auth.MintAccessToken(config.JWTConfig{Secret: "someone-else"}, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: "acct-7"})
	require.NoError(t, err)
	require.NoError(t, s.store.WriteString(ctx, "authToken", token))

	_, err = s.coord.AddToCart(ctx, "P2", 1, nil, types.ItemMeta{})
	require.NoError(t, err)
	s.coord.Wait()

	assert.Equal(t, enums.SessionContextGuest, s.coord.State().Context)
	_, err = s.cart.FetchAll(ctx)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}
