// Package wishlist owns wishlist toggle semantics over the active session context.
package wishlist

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/packfinderz-cartsync/internal/localstore"
	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/latch"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
)

// Outcome describes what a wishlist mutation did.
type Outcome string

const (
	OutcomeAdded          Outcome = "added"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeRemoved        Outcome = "removed"
	OutcomeAbsent         Outcome = "absent"
)

// Params groups dependencies for the wishlist engine.
type Params struct {
	States   session.Provider
	Store    *localstore.Store
	Remote   RemoteWishlist
	Latches  *latch.Set
	Logger   *logger.Logger
	Notifier session.Notifier
}

// Engine applies wishlist mutations.
type Engine struct {
	states   session.Provider
	store    *localstore.Store
	remote   RemoteWishlist
	latches  *latch.Set
	logg     *logger.Logger
	notifier session.Notifier

	wg sync.WaitGroup
}

func NewEngine(params Params) (*Engine, error) {
	if params.States == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state provider is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote wishlist is required")
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
	return &Engine{
		states:   params.States,
		store:    params.Store,
		remote:   params.Remote,
		latches:  params.Latches,
		logg:     params.Logger,
		notifier: params.Notifier,
	}, nil
}

// Add saves productID. A product already on the wishlist yields
// OutcomeAlreadyPresent, an already-present notice and no remote call.
func (e *Engine) Add(ctx context.Context, productID string, meta types.ItemMeta) (Outcome, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	state := e.states.Active()
	ctx = e.logContext(ctx, state, productID)

	_, added := state.AddWishlistItem(types.NewWishlistItem(productID, meta))
	if !added {
		e.notifier.Notice(ctx, session.Notice{
			Level:   enums.NoticeLevelInfo,
			Code:    session.CodeAlreadyPresent,
			Message: "already in your wishlist",
			Subject: productID,
		})
		return OutcomeAlreadyPresent, nil
	}
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)

	if isAuthenticated(state) {
		e.background(ctx, func(ctx context.Context) {
			e.pushAdd(ctx, productID)
		})
	}
	return OutcomeAdded, nil
}

func (e *Engine) pushAdd(ctx context.Context, productID string) {
	err := e.remote.AddItem(ctx, productID)
	switch {
	case err == nil:
	case pkgerrors.Is(err, pkgerrors.CodeAlreadyExists):
		e.logg.Debug(ctx, "wishlist add already applied remotely")
	case pkgerrors.Is(err, pkgerrors.CodeUnauthorized):
		e.notifier.Unauthorized(ctx, err)
	default:
		e.notifier.Notice(ctx, session.NoticeFromError(err, productID))
	}
}

// Remove drops productID. Removing an absent product is a no-op.
func (e *Engine) Remove(ctx context.Context, productID string) (Outcome, error) {
	productID = strings.TrimSpace(productID)
	state := e.states.Active()
	ctx = e.logContext(ctx, state, productID)

	if !state.RemoveWishlistItem(productID) {
		e.logg.Debug(ctx, "remove of absent wishlist item ignored")
		return OutcomeAbsent, nil
	}
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)

	if isAuthenticated(state) {
		e.background(ctx, func(ctx context.Context) {
			e.pushRemove(ctx, productID)
		})
	}
	return OutcomeRemoved, nil
}

func (e *Engine) pushRemove(ctx context.Context, productID string) {
	err := e.remote.RemoveItem(ctx, productID)
	if err == nil || pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return
	}
	if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		e.notifier.Unauthorized(ctx, err)
		return
	}
	e.logg.Warn(ctx, "wishlist remove failed; reloading canonical wishlist")
	if reloadErr := e.Reload(ctx); reloadErr != nil {
		e.notifier.Notice(ctx, session.NoticeFromError(err, productID))
	}
}

// Toggle removes productID when present and adds it otherwise.
func (e *Engine) Toggle(ctx context.Context, productID string, meta types.ItemMeta) (Outcome, error) {
	if e.Contains(productID) {
		return e.Remove(ctx, productID)
	}
	return e.Add(ctx, productID, meta)
}

// Contains reports whether productID is on the active wishlist.
func (e *Engine) Contains(productID string) bool {
	return e.states.Active().Wishlist().Contains(strings.TrimSpace(productID))
}

// Reload replaces the active wishlist with the canonical one (authenticated)
// or with the persisted one (guest). A reload already in flight makes this a no-op.
func (e *Engine) Reload(ctx context.Context) error {
	if !e.latches.TryAcquire(latch.WishlistLoading) {
		e.logg.Info(ctx, "wishlist reload already in progress; skipping")
		return nil
	}
	defer e.latches.Release(latch.WishlistLoading)

	state := e.states.Active()
	ctx = e.logContext(ctx, state, "")
	if !isAuthenticated(state) {
		e.Hydrate(ctx, state)
		e.notifier.StateChanged(ctx)
		return nil
	}

	gen := state.WishlistGeneration()
	items, err := e.remote.FetchAll(ctx)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			e.notifier.Unauthorized(ctx, err)
		}
		return err
	}
	if !state.ReplaceWishlistIfCurrent(items, gen) {
		e.logg.Info(ctx, "wishlist changed locally since request was sent; keeping local state")
		return nil
	}
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)
	return nil
}

// Hydrate loads state's wishlist from the local store. A missing or
// unreadable value yields an empty wishlist.
func (e *Engine) Hydrate(ctx context.Context, state *session.EngineState) {
	var items types.WishlistItems
	if !e.store.Get(ctx, state.WishlistKey(), &items) {
		items = nil
	}
	state.ReplaceWishlist(items)
}

// Replace overwrites the active wishlist and persists it.
func (e *Engine) Replace(ctx context.Context, items types.WishlistItems) {
	state := e.states.Active()
	state.ReplaceWishlist(items)
	e.persist(ctx, state)
	e.notifier.StateChanged(ctx)
}

// Items returns a copy of the active wishlist.
func (e *Engine) Items() types.WishlistItems {
	return e.states.Active().Wishlist()
}

// Wait blocks until background remote work is done.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) persist(ctx context.Context, state *session.EngineState) {
	e.store.Set(ctx, state.WishlistKey(), state.Wishlist())
}

func (e *Engine) background(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(ctx)
	}()
}

func (e *Engine) logContext(ctx context.Context, state *session.EngineState, productID string) context.Context {
	ctx = e.logg.WithSessionContext(ctx, state.Context().String())
	if productID != "" {
		ctx = e.logg.WithItemKey(ctx, productID)
	}
	return ctx
}

func isAuthenticated(state *session.EngineState) bool {
	return state.Context() == enums.SessionContextAuthenticated
}
