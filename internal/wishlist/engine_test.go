package wishlist

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/packfinderz-cartsync/internal/localstore"
	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/latch"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	items types.WishlistItems
	errs  map[string][]error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{items: types.WishlistItems{}, errs: map[string][]error{}}
}

func (f *fakeRemote) failNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

func (f *fakeRemote) record(op, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+productID)
	if queued := f.errs[op]; len(queued) > 0 {
		f.errs[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) FetchAll(context.Context) (types.WishlistItems, error) {
	if err := f.record("fetch", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Clone(), nil
}

func (f *fakeRemote) AddItem(_ context.Context, productID string) error {
	if err := f.record("add", productID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, types.WishlistItem{ProductID: productID}).Normalize()
	return nil
}

func (f *fakeRemote) RemoveItem(_ context.Context, productID string) error {
	if err := f.record("remove", productID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx := f.items.Find(productID); idx >= 0 {
		f.items = append(f.items[:idx], f.items[idx+1:]...)
	}
	return nil
}

type fixedProvider struct {
	state *session.EngineState
}

func (p *fixedProvider) Active() *session.EngineState {
	return p.state
}

type recordingNotifier struct {
	mu           sync.Mutex
	changes      int
	notices      []session.Notice
	unauthorized int
}

func (r *recordingNotifier) StateChanged(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes++
}

func (r *recordingNotifier) Notice(_ context.Context, n session.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) Unauthorized(context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unauthorized++
}

func (r *recordingNotifier) Notices() []session.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Notice(nil), r.notices...)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

type harness struct {
	engine   *Engine
	state    *session.EngineState
	remote   *fakeRemote
	store    *localstore.Store
	notifier *recordingNotifier
	latches  *latch.Set
}

func newHarness(t *testing.T, context enums.SessionContext) *harness {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: &lockedBuffer{}})
	store, err := localstore.New(localstore.Params{Backend: localstore.NewMemoryBackend(0), Logger: logg})
	require.NoError(t, err)

	h := &harness{
		state:    session.NewEngineState(context),
		remote:   newFakeRemote(),
		store:    store,
		notifier: &recordingNotifier{},
		latches:  latch.New(nil),
	}
	h.engine, err = NewEngine(Params{
		States:   &fixedProvider{state: h.state},
		Store:    store,
		Remote:   h.remote,
		Latches:  h.latches,
		Logger:   logg,
		Notifier: h.notifier,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) persisted(t *testing.T) types.WishlistItems {
	t.Helper()
	var items types.WishlistItems
	h.store.Get(context.Background(), h.state.WishlistKey(), &items)
	return items
}

func TestNewEngineValidatesParams(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(Params{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestAddPresentProductIsNoopWithNotice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextAuthenticated)
	h.state.ReplaceWishlist(types.WishlistItems{{ProductID: "P1"}})

	outcome, err := h.engine.Add(ctx, "P1", types.ItemMeta{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPresent, outcome)
	h.engine.Wait()

	assert.Empty(t, h.remote.Calls())
	notices := h.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, session.CodeAlreadyPresent, notices[0].Code)
	assert.Equal(t, enums.NoticeLevelInfo, notices[0].Level)
	assert.Len(t, h.engine.Items(), 1)
}

func TestAddAuthenticatedPushesInBackground(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextAuthenticated)

	outcome, err := h.engine.Add(ctx, " P2 ", types.ItemMeta{Name: "Mug"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, outcome)
	assert.True(t, h.engine.Contains("P2"))
	assert.Equal(t, "Mug", h.persisted(t)[0].Name)

	h.engine.Wait()
	assert.Equal(t, []string{"add:P2"}, h.remote.Calls())
}

func TestAddGuestStaysLocal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enums.SessionContextGuest)
	_, err := h.engine.Add(context.Background(), "P2", types.ItemMeta{})
	require.NoError(t, err)
	h.engine.Wait()
	assert.Empty(t, h.remote.Calls())
	assert.Equal(t, []string{"P2"}, h.persisted(t).ProductIDs())
}

func TestAddRejectsBlankProduct(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enums.SessionContextGuest)
	_, err := h.engine.Add(context.Background(), "  ", types.ItemMeta{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRemoteAlreadyExistsCountsAsSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextAuthenticated)
	h.remote.failNext("add", pkgerrors.New(pkgerrors.CodeAlreadyExists, "Product already in wishlist"))

	_, err := h.engine.Add(ctx, "P3", types.ItemMeta{})
	require.NoError(t, err)
	h.engine.Wait()

	assert.Empty(t, h.notifier.Notices())
	assert.True(t, h.engine.Contains("P3"))
}

func TestRemoteAddFailureKeepsLocalAndNotifies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextAuthenticated)
	h.remote.failNext("add", pkgerrors.New(pkgerrors.CodeTimeout, "slow"))

	_, err := h.engine.Add(ctx, "P3", types.ItemMeta{})
	require.NoError(t, err)
	h.engine.Wait()

	assert.True(t, h.engine.Contains("P3"))
	notices := h.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, pkgerrors.CodeTimeout, notices[0].Code)
}

func TestRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextAuthenticated)
	h.state.ReplaceWishlist(types.WishlistItems{{ProductID: "P1"}})

	outcome, err := h.engine.Remove(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)

	outcome, err = h.engine.Remove(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbsent, outcome)
	h.engine.Wait()

	assert.Equal(t, []string{"remove:P1"}, h.remote.Calls())
	assert.Empty(t, h.persisted(t))
}

func TestRemoveFailureReloadsCanonical(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextAuthenticated)
	h.state.ReplaceWishlist(types.WishlistItems{{ProductID: "P1"}})
	h.remote.items = types.WishlistItems{{ProductID: "P1", Name: "canonical"}}
	h.remote.failNext("remove", pkgerrors.New(pkgerrors.CodeNetwork, "offline"))

	_, err := h.engine.Remove(ctx, "P1")
	require.NoError(t, err)
	h.engine.Wait()

	assert.Equal(t, []string{"remove:P1", "fetch:"}, h.remote.Calls())
	items := h.engine.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "canonical", items[0].Name)
	assert.Empty(t, h.notifier.Notices())
}

func TestToggle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextGuest)

	outcome, err := h.engine.Toggle(ctx, "P1", types.ItemMeta{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, outcome)

	outcome, err = h.engine.Toggle(ctx, "P1", types.ItemMeta{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)
	assert.False(t, h.engine.Contains("P1"))
}

func TestReloadUnauthorizedEscalates(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enums.SessionContextAuthenticated)
	h.remote.failNext("fetch", pkgerrors.New(pkgerrors.CodeUnauthorized, "expired"))

	err := h.engine.Reload(context.Background())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, 1, h.notifier.unauthorized)
	assert.False(t, h.latches.Held(latch.WishlistLoading))
}

func TestReloadSkippedWhileLatchHeld(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enums.SessionContextAuthenticated)
	require.True(t, h.latches.TryAcquire(latch.WishlistLoading))
	require.NoError(t, h.engine.Reload(context.Background()))
	assert.Empty(t, h.remote.Calls())
}

func TestGuestReloadRehydratesFromStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextGuest)
	h.store.Set(ctx, session.KeyGuestWishlist, types.WishlistItems{{ProductID: "P8"}, {ProductID: "P8"}})

	require.NoError(t, h.engine.Reload(ctx))
	assert.Equal(t, []string{"P8"}, h.engine.Items().ProductIDs())
}

func TestHydrateDiscardsPartiallyDecodedWishlist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, enums.SessionContextGuest)
	require.NoError(t, h.store.WriteString(ctx, session.KeyGuestWishlist,
		`[{"productId":"P1"},{"productId":"P2","price":{}}]`))

	fresh := session.NewEngineState(enums.SessionContextGuest)
	h.engine.Hydrate(ctx, fresh)

	assert.Empty(t, fresh.Wishlist())
	_, stored := h.store.ReadString(ctx, session.KeyGuestWishlist)
	assert.False(t, stored, "unreadable value is cleared")
}

func TestReplaceNormalizes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, enums.SessionContextGuest)
	h.engine.Replace(context.Background(), types.WishlistItems{{ProductID: "P1"}, {ProductID: ""}, {ProductID: "P1"}})
	assert.Equal(t, []string{"P1"}, h.engine.Items().ProductIDs())
	assert.Equal(t, []string{"P1"}, h.persisted(t).ProductIDs())
}
