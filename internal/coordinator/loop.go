package coordinator

import (
	"context"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/latch"
	"go.uber.org/multierr"
)

// Reconcile refreshes the authenticated cart and wishlist from the canonical
// store. Guests have nothing to reconcile. On failure the cached state stays
// in place and the phase returns to idle.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	if c.Active() != c.user {
		return nil
	}
	ctx = c.logg.WithOperation(ctx, "reconcile")
	if !c.latches.TryAcquire(latch.BackendSyncRunning) {
		c.logg.Info(ctx, "backend sync already running; skipping")
		return nil
	}
	defer c.latches.Release(latch.BackendSyncRunning)

	c.setPhase(enums.SyncPhaseLoading)
	err := multierr.Combine(
		c.cart.Reload(ctx),
		c.wishlist.Reload(ctx),
	)
	if err != nil {
		c.logg.Warn(ctx, "reconcile failed; keeping cached state: "+err.Error())
	}
	c.settle(err != nil)
	return err
}

// Run reconciles on a fixed cadence and watches the local store for changes
// made by other processes until ctx is canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reconcile := time.NewTicker(c.reconcileInterval)
	defer reconcile.Stop()
	watch := time.NewTicker(c.watchInterval)
	defer watch.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logg.Info(ctx, "coordinator loop context canceled")
			return ctx.Err()
		case <-reconcile.C:
			_ = c.Reconcile(ctx)
		case <-watch.C:
			c.CheckExternalChanges(ctx)
		}
	}
}

// CheckExternalChanges re-hydrates collections another process rewrote and
// follows token changes: a new valid token logs in, a vanished one demotes the
// session to guest.
func (c *Coordinator) CheckExternalChanges(ctx context.Context) {
	changed := c.store.Changed(ctx, c.watchKeys()...)
	if len(changed) == 0 {
		return
	}
	ctx = c.logg.WithField(ctx, "changed_keys", changed)
	c.logg.Info(ctx, "local store changed externally")

	var tokenChanged, stateChanged bool
	for _, key := range changed {
		switch key {
		case c.tokenKey:
			tokenChanged = true
		case session.KeyGuestCart:
			c.cart.Hydrate(ctx, c.guest)
			stateChanged = true
		case session.KeyGuestWishlist:
			c.wishlist.Hydrate(ctx, c.guest)
			stateChanged = true
		case session.KeyUserCart:
			c.cart.Hydrate(ctx, c.user)
			stateChanged = true
		case session.KeyUserWishlist:
			c.wishlist.Hydrate(ctx, c.user)
			stateChanged = true
		}
	}
	if stateChanged {
		c.emit(session.Event{Type: session.EventStateChanged})
	}
	if tokenChanged {
		c.followToken(ctx)
	}
}

func (c *Coordinator) followToken(ctx context.Context) {
	account, ok := c.authenticate(ctx)
	switch {
	case ok && account != c.Account():
		if err := c.Login(ctx); err != nil {
			c.logg.Warn(ctx, "login after token change failed: "+err.Error())
		}
	case !ok && c.Active() == c.user:
		c.activate(c.guest, "")
		c.logg.Info(ctx, "auth token removed; continuing as guest")
		c.emit(session.Event{Type: session.EventStateChanged})
	}
}
