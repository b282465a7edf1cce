// Package coordinator owns the guest and authenticated engine states, decides
// which one is active, and drives the session lifecycle: startup hydration,
// the guest-to-account merge, reconciliation with the canonical store, and
// cross-process change detection.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/cart"
	"github.com/angelmondragon/packfinderz-cartsync/internal/localstore"
	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/internal/wishlist"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/latch"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/metrics"
)

const (
	defaultTokenKey          = "authToken"
	defaultMergeCallDelay    = 150 * time.Millisecond
	defaultReconcileInterval = time.Minute
	defaultWatchInterval     = 2 * time.Second
)

// Params groups dependencies for the coordinator.
type Params struct {
	Store          *localstore.Store
	CartRemote     cart.RemoteCart
	WishlistRemote wishlist.RemoteWishlist
	Logger         *logger.Logger
	Metrics        *metrics.SyncMetrics
	JWT            config.JWTConfig
	Sync           config.SyncConfig
	TokenKey       string
	Now            func() time.Time
}

// Coordinator is the single entry point the rendering layer talks to.
type Coordinator struct {
	store          *localstore.Store
	cartRemote     cart.RemoteCart
	wishlistRemote wishlist.RemoteWishlist
	logg           *logger.Logger
	metrics        *metrics.SyncMetrics
	jwt            config.JWTConfig
	tokenKey       string
	now            func() time.Time

	mergeDelay        time.Duration
	reconcileInterval time.Duration
	watchInterval     time.Duration

	latches  *latch.Set
	cart     *cart.Engine
	wishlist *wishlist.Engine

	guest *session.EngineState
	user  *session.EngineState

	mu      sync.RWMutex
	active  *session.EngineState
	phase   enums.SyncPhase
	account string

	subMu       sync.Mutex
	subscribers map[int]func(session.Event)
	nextSub     int

	wg sync.WaitGroup
}

// New wires the cart and wishlist engines around a fresh pair of states. Guest
// is active until Init or Login finds a valid token.
func New(params Params) (*Coordinator, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.CartRemote == nil || params.WishlistRemote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote cart and wishlist clients are required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if params.TokenKey == "" {
		params.TokenKey = defaultTokenKey
	}
	if params.Now == nil {
		params.Now = time.Now
	}

	c := &Coordinator{
		store:             params.Store,
		cartRemote:        params.CartRemote,
		wishlistRemote:    params.WishlistRemote,
		logg:              params.Logger,
		metrics:           params.Metrics,
		jwt:               params.JWT,
		tokenKey:          params.TokenKey,
		now:               params.Now,
		mergeDelay:        durationOr(params.Sync.MergeCallDelay, defaultMergeCallDelay),
		reconcileInterval: durationOr(params.Sync.ReconcileInterval, defaultReconcileInterval),
		watchInterval:     durationOr(params.Sync.WatchInterval, defaultWatchInterval),
		latches:           latch.New(params.Metrics),
		guest:             session.NewEngineState(enums.SessionContextGuest),
		user:              session.NewEngineState(enums.SessionContextAuthenticated),
		phase:             enums.SyncPhaseIdle,
		subscribers:       make(map[int]func(session.Event)),
	}
	c.active = c.guest

	var err error
	c.cart, err = cart.NewEngine(cart.Params{
		States:   c,
		Store:    params.Store,
		Remote:   params.CartRemote,
		Latches:  c.latches,
		Logger:   params.Logger,
		Notifier: c,
		Now:      params.Now,
		Throttle: params.Sync.AddThrottle,
		Debounce: params.Sync.QuantityDebounce,
	})
	if err != nil {
		return nil, fmt.Errorf("cart engine: %w", err)
	}
	c.wishlist, err = wishlist.NewEngine(wishlist.Params{
		States:   c,
		Store:    params.Store,
		Remote:   params.WishlistRemote,
		Latches:  c.latches,
		Logger:   params.Logger,
		Notifier: c,
	})
	if err != nil {
		return nil, fmt.Errorf("wishlist engine: %w", err)
	}
	return c, nil
}

// Active implements session.Provider.
func (c *Coordinator) Active() *session.EngineState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// State returns a snapshot of the active state.
func (c *Coordinator) State() session.Snapshot {
	return c.Active().Snapshot()
}

// Phase returns the current sync phase.
func (c *Coordinator) Phase() enums.SyncPhase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Account returns the subject of the authenticated session, or "" for guests.
func (c *Coordinator) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Token returns the bearer token for remote calls. Guest sessions send none.
func (c *Coordinator) Token(ctx context.Context) string {
	if c.Active().Context() != enums.SessionContextAuthenticated {
		return ""
	}
	token, _ := c.store.ReadString(ctx, c.tokenKey)
	return token
}

// Subscribe registers fn for state and notice events and returns a func that
// removes it. fn runs on the goroutine that caused the event.
func (c *Coordinator) Subscribe(fn func(session.Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subscribers, id)
	}
}

// StateChanged implements session.Notifier.
func (c *Coordinator) StateChanged(context.Context) {
	c.emit(session.Event{Type: session.EventStateChanged})
}

// Notice implements session.Notifier.
func (c *Coordinator) Notice(ctx context.Context, notice session.Notice) {
	ctx = c.logg.WithField(ctx, "notice_code", string(notice.Code))
	if notice.Level == enums.NoticeLevelInfo {
		c.logg.Info(ctx, notice.Message)
	} else {
		c.logg.Warn(ctx, notice.Message)
	}
	c.emit(session.Event{Type: session.EventNotice, Notice: &notice})
}

// Unauthorized implements session.Notifier: the session falls back to guest
// for this process. The token itself is left for the auth service to manage.
func (c *Coordinator) Unauthorized(ctx context.Context, err error) {
	c.mu.Lock()
	if c.active != c.user {
		c.mu.Unlock()
		return
	}
	c.active = c.guest
	c.account = ""
	c.phase = enums.SyncPhaseIdle
	c.mu.Unlock()

	c.logg.Warn(ctx, fmt.Sprintf("commerce api rejected the session; continuing as guest: %v", err))
	c.Notice(ctx, session.NoticeFromError(pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "session rejected"), ""))
	c.StateChanged(ctx)
}

func (c *Coordinator) setPhase(phase enums.SyncPhase) {
	c.mu.Lock()
	changed := c.phase != phase
	c.phase = phase
	c.mu.Unlock()
	if changed {
		c.emit(session.Event{Type: session.EventStateChanged})
	}
}

// settle moves the coordinator back to idle, passing through the error phase
// when the sequence that just ended failed.
func (c *Coordinator) settle(failed bool) {
	if failed {
		c.setPhase(enums.SyncPhaseError)
	}
	c.setPhase(enums.SyncPhaseIdle)
}

func (c *Coordinator) emit(event session.Event) {
	event.Phase = c.Phase()
	event.State = c.State()

	c.subMu.Lock()
	subs := make([]func(session.Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

func (c *Coordinator) background(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
