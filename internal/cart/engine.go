// Package cart owns cart mutation semantics over the active session context:
// optimistic local application, persistence, and background reconciliation
// with the canonical cart when authenticated.
package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/localstore"
	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/latch"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

const (
	defaultThrottle = 700 * time.Millisecond
	defaultDebounce = 500 * time.Millisecond
)

// Outcome describes what AddToCart did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeThrottled Outcome = "throttled"
)

// Params groups dependencies for the cart engine.
type Params struct {
	States   session.Provider
	Store    *localstore.Store
	Remote   RemoteCart
	Latches  *latch.Set
	Logger   *logger.Logger
	Notifier session.Notifier
	Now      func() time.Time
	Throttle time.Duration
	Debounce time.Duration
}

// Engine applies cart mutations.
type Engine struct {
	states   session.Provider
	store    *localstore.Store
	remote   RemoteCart
	latches  *latch.Set
	logg     *logger.Logger
	notifier session.Notifier
	now      func() time.Time
	throttle time.Duration
	debounce time.Duration

	mu      sync.Mutex
	lastAdd map[string]time.Time
	pending map[string]*pendingUpdate
	wg      sync.WaitGroup
}

type pendingUpdate struct {
	ctx   context.Context
	state *session.EngineState
	timer *time.Timer
}

// NewEngine validates params and builds the engine.
func NewEngine(params Params) (*Engine, error) {
	if params.States == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state provider is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote cart is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.Latches == nil {
		params.Latches = latch.New(nil)
	}
	if params.Notifier == nil {
		params.Notifier = session.Nop{}
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Throttle <= 0 {
		params.Throttle = defaultThrottle
	}
	if params.Debounce <= 0 {
		params.Debounce = defaultDebounce
	}
	return &Engine{
		states:   params.States,
		store:    params.Store,
		remote:   params.Remote,
		latches:  params.Latches,
		logg:     params.Logger,
		notifier: params.Notifier,
		now:      params.Now,
		throttle: params.Throttle,
		debounce: params.Debounce,
		lastAdd:  make(map[string]time.Time),
		pending:  make(map[string]*pendingUpdate),
	}, nil
}

// AddToCart adds qty of the product/color line. A repeat for the same key
// inside the throttle window is dropped without any mutation.
func (e *Engine) AddToCart(ctx context.Context, productID string, qty int, color *types.ColorVariant, meta types.ItemMeta) (Outcome, error) {
	if strings.TrimSpace(productID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty < 1 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	item := types.NewCartItem(productID, qty, color, meta)
	state := e.states.Active()
	ctx = e.logContext(ctx, state, item.Key)

	if e.throttled(item.Key) {
		e.logg.Info(ctx, "add to cart throttled")
		return OutcomeThrottled, nil
	}

	_, gen := state.UpsertCartItem(item)
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)

	if isAuthenticated(state) {
		e.background(ctx, func(ctx context.Context) {
			e.pushAdd(ctx, state, item, gen)
		})
	}
	return OutcomeApplied, nil
}

func (e *Engine) throttled(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for k, at := range e.lastAdd {
		if now.Sub(at) >= e.throttle {
			delete(e.lastAdd, k)
		}
	}
	if _, recent := e.lastAdd[key]; recent {
		return true
	}
	e.lastAdd[key] = now
	return false
}

func (e *Engine) pushAdd(ctx context.Context, state *session.EngineState, item types.CartItem, gen uint64) {
	items, err := e.remote.AddItem(ctx, item.ProductID, item.Quantity, item.Color)
	if err != nil && item.Color != nil && pkgerrors.Is(err, pkgerrors.CodeValidation) {
		e.logg.Warn(ctx, "cart add rejected with color; retrying without it")
		items, err = e.remote.AddItem(ctx, item.ProductID, item.Quantity, nil)
	}
	if err != nil {
		e.remoteFailed(ctx, err, item.Key)
		return
	}
	e.reconcile(ctx, state, items, gen)
}

// RemoveItem deletes the line at key. Removing a missing key is a no-op.
func (e *Engine) RemoveItem(ctx context.Context, key string) error {
	state := e.states.Active()
	ctx = e.logContext(ctx, state, key)

	e.cancelPending(key)
	removed, ok := state.RemoveCartItem(key)
	if !ok {
		e.logg.Debug(ctx, "remove of absent cart line ignored")
		return nil
	}
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)

	if isAuthenticated(state) {
		e.background(ctx, func(ctx context.Context) {
			e.pushRemove(ctx, removed)
		})
	}
	return nil
}

func (e *Engine) pushRemove(ctx context.Context, removed types.CartItem) {
	err := e.remote.RemoveItem(ctx, removed.ProductID, removed.Color)
	if err != nil && removed.Color != nil && !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		e.logg.Warn(ctx, fmt.Sprintf("cart remove failed (%s); retrying without color", pkgerrors.CodeOf(err)))
		err = e.remote.RemoveItem(ctx, removed.ProductID, nil)
	}
	if err == nil {
		return
	}
	if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		e.notifier.Unauthorized(ctx, err)
		return
	}
	e.logg.Warn(ctx, "cart remove failed; reloading canonical cart")
	if reloadErr := e.Reload(ctx); reloadErr != nil {
		e.notifier.Notice(ctx, session.NoticeFromError(err, removed.Key))
	}
}

// UpdateQuantity applies delta to the line at key immediately and sends the
// final quantity to the canonical cart once the key has been quiet for the
// debounce window. A result below one removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, key string, delta int) error {
	if delta == 0 {
		return nil
	}
	state := e.states.Active()
	ctx = e.logContext(ctx, state, key)

	cart := state.Cart()
	idx := cart.Find(key)
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").WithDetails(map[string]any{"key": key})
	}
	if cart[idx].Quantity+delta < 1 {
		return e.RemoveItem(ctx, key)
	}

	state.AdjustCartQuantity(key, delta)
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)

	if isAuthenticated(state) {
		e.schedule(ctx, state, key)
	}
	return nil
}

func (e *Engine) schedule(ctx context.Context, state *session.EngineState, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev := e.pending[key]; prev != nil && prev.timer.Stop() {
		e.wg.Done()
	}
	p := &pendingUpdate{ctx: context.WithoutCancel(ctx), state: state}
	e.pending[key] = p
	e.wg.Add(1)
	p.timer = time.AfterFunc(e.debounce, func() {
		defer e.wg.Done()
		e.mu.Lock()
		if e.pending[key] != p {
			e.mu.Unlock()
			return
		}
		delete(e.pending, key)
		e.mu.Unlock()
		e.pushQuantity(p.ctx, p.state, key)
	})
}

func (e *Engine) cancelPending(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.pending[key]; p != nil {
		delete(e.pending, key)
		if p.timer.Stop() {
			e.wg.Done()
		}
	}
}

func (e *Engine) cancelAllPending() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, p := range e.pending {
		delete(e.pending, key)
		if p.timer.Stop() {
			e.wg.Done()
		}
	}
}

// Flush sends every debounced quantity update now.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	type flushed struct {
		key string
		p   *pendingUpdate
	}
	var due []flushed
	for key, p := range e.pending {
		if p.timer.Stop() {
			delete(e.pending, key)
			due = append(due, flushed{key: key, p: p})
		}
	}
	e.mu.Unlock()

	for _, f := range due {
		e.pushQuantity(f.p.ctx, f.p.state, f.key)
		e.wg.Done()
	}
	if len(due) > 0 {
		e.logg.Debug(e.logg.WithField(ctx, "count", len(due)), "flushed pending quantity updates")
	}
}

func (e *Engine) pushQuantity(ctx context.Context, state *session.EngineState, key string) {
	cart := state.Cart()
	idx := cart.Find(key)
	if idx < 0 {
		return
	}
	line := cart[idx]
	gen := state.CartGeneration()

	items, err := e.remote.UpdateQuantity(ctx, line.ProductID, line.Quantity, line.Color)
	if err != nil && line.Color != nil && pkgerrors.Is(err, pkgerrors.CodeValidation) {
		e.logg.Warn(ctx, "cart update rejected with color; retrying without it")
		items, err = e.remote.UpdateQuantity(ctx, line.ProductID, line.Quantity, nil)
	}
	if err != nil {
		e.remoteFailed(ctx, err, key)
		return
	}
	e.reconcile(ctx, state, items, gen)
}

// Clear empties the active cart. The canonical cart is cleared first when
// authenticated; a remote failure is logged and the local cart is cleared anyway.
func (e *Engine) Clear(ctx context.Context) error {
	state := e.states.Active()
	ctx = e.logContext(ctx, state, "")

	e.cancelAllPending()
	if isAuthenticated(state) {
		if err := e.remote.Clear(ctx); err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
				e.notifier.Unauthorized(ctx, err)
			} else {
				e.logg.Warn(ctx, fmt.Sprintf("remote cart clear failed: %v", err))
			}
		}
	}

	state.ReplaceCart(types.CartItems{})
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)
	return nil
}

// Reload replaces the active cart with the canonical one (authenticated) or
// with the persisted one (guest). A reload already in flight makes this a no-op.
func (e *Engine) Reload(ctx context.Context) error {
	if !e.latches.TryAcquire(latch.CartLoading) {
		e.logg.Info(ctx, "cart reload already in progress; skipping")
		return nil
	}
	defer e.latches.Release(latch.CartLoading)

	state := e.states.Active()
	ctx = e.logContext(ctx, state, "")
	if !isAuthenticated(state) {
		e.Hydrate(ctx, state)
		e.notifier.StateChanged(ctx)
		return nil
	}

	gen := state.CartGeneration()
	items, err := e.remote.FetchAll(ctx)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			e.notifier.Unauthorized(ctx, err)
		}
		return err
	}
	e.reconcile(ctx, state, items, gen)
	return nil
}

// Hydrate loads state's cart from the local store. A missing or unreadable
// value yields an empty cart.
func (e *Engine) Hydrate(ctx context.Context, state *session.EngineState) {
	var items types.CartItems
	if !e.store.Get(ctx, state.CartKey(), &items) {
		items = nil
	}
	state.ReplaceCart(items)
}

// Replace overwrites the active cart and persists it.
func (e *Engine) Replace(ctx context.Context, items types.CartItems) {
	state := e.states.Active()
	state.ReplaceCart(items)
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)
}

// Items returns a copy of the active cart.
func (e *Engine) Items() types.CartItems {
	return e.states.Active().Cart()
}

// Wait blocks until background remote work, including debounced updates, is done.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) reconcile(ctx context.Context, state *session.EngineState, items types.CartItems, gen uint64) {
	if !state.ReplaceCartIfCurrent(items, gen) {
		e.logg.Info(ctx, "cart changed locally since request was sent; keeping local state")
		return
	}
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)
}

func (e *Engine) remoteFailed(ctx context.Context, err error, subject string) {
	if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		e.notifier.Unauthorized(ctx, err)
		return
	}
	e.notifier.Notice(ctx, session.NoticeFromError(err, subject))
}

func (e *Engine) persist(ctx context.Context, state *session.EngineState) {
	e.store.Set(ctx, state.CartKey(), state.Cart())
}

func (e *Engine) background(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(ctx)
	}()
}

func (e *Engine) logContext(ctx context.Context, state *session.EngineState, key string) context.Context {
	ctx = e.logg.WithSessionContext(ctx, state.Context().String())
	if key != "" {
		ctx = e.logg.WithItemKey(ctx, key)
	}
	return ctx
}

func isAuthenticated(state *session.EngineState) bool {
	return state.Context() == enums.SessionContextAuthenticated
}
