package coordinator

import (
	"context"
	"errors"

	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/auth"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
)

// Init hydrates both states from the local store, picks the active context
// from the auth token and returns. Merge or reconciliation for an
// authenticated session continues in the background; Close or Wait joins it.
func (c *Coordinator) Init(ctx context.Context) error {
	ctx = c.logg.WithOperation(ctx, "init")
	c.hydrate(ctx, c.guest)
	c.hydrate(ctx, c.user)
	c.store.Changed(ctx, c.watchKeys()...)

	account, ok := c.authenticate(ctx)
	if !ok {
		c.activate(c.guest, "")
		c.emit(session.Event{Type: session.EventStateChanged})
		return nil
	}

	c.activate(c.user, account)
	c.setPhase(enums.SyncPhaseLoading)
	c.emit(session.Event{Type: session.EventStateChanged})
	c.background(ctx, func(ctx context.Context) {
		c.syncAccount(ctx, account)
	})
	return nil
}

// Reset drops in-memory state and latches without touching the local store.
// Init must be called again before use.
func (c *Coordinator) Reset() {
	c.cart.Flush(context.Background())
	c.Wait()
	c.guest.Reset()
	c.user.Reset()
	c.latches.Reset()
	c.mu.Lock()
	c.active = c.guest
	c.account = ""
	c.phase = enums.SyncPhaseIdle
	c.mu.Unlock()
}

// Login re-reads the auth token and performs the guest-to-account transition:
// the first sync for an account merges the guest cart and wishlist into it,
// later ones reconcile with the canonical state.
func (c *Coordinator) Login(ctx context.Context) error {
	ctx = c.logg.WithOperation(ctx, "login")
	account, ok := c.authenticate(ctx)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no valid auth token")
	}

	c.hydrate(ctx, c.user)
	c.activate(c.user, account)
	c.setPhase(enums.SyncPhaseLoading)
	c.emit(session.Event{Type: session.EventStateChanged})
	return c.syncAccount(ctx, account)
}

// Logout clears guest and account caches along with the merge marker and
// makes guest active.
func (c *Coordinator) Logout(ctx context.Context) error {
	return c.clearSession(c.logg.WithOperation(ctx, "logout"))
}

// SwitchUser clears everything Logout clears, then logs in when a valid token
// for the next account is already present.
func (c *Coordinator) SwitchUser(ctx context.Context) error {
	ctx = c.logg.WithOperation(ctx, "switch_user")
	if err := c.clearSession(ctx); err != nil {
		return err
	}
	if _, ok := c.authenticate(ctx); !ok {
		return nil
	}
	return c.Login(ctx)
}

// Wait blocks until background work started by the coordinator and its
// engines has finished. Debounced quantity updates still pending are included.
func (c *Coordinator) Wait() {
	c.wg.Wait()
	c.cart.Wait()
	c.wishlist.Wait()
}

// Close sends pending quantity updates and waits for background work, giving
// up when ctx is done.
func (c *Coordinator) Close(ctx context.Context) error {
	c.cart.Flush(ctx)
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) clearSession(ctx context.Context) error {
	c.cart.Flush(ctx)
	c.Wait()

	for _, key := range []string{
		session.KeyGuestCart,
		session.KeyGuestWishlist,
		session.KeyUserCart,
		session.KeyUserWishlist,
		session.KeySyncedUser,
	} {
		c.store.Remove(ctx, key)
	}
	c.guest.Reset()
	c.user.Reset()
	c.activate(c.guest, "")
	c.setPhase(enums.SyncPhaseIdle)
	c.logg.Info(ctx, "session caches cleared")
	c.emit(session.Event{Type: session.EventStateChanged})
	return nil
}

// syncAccount runs the merge when account has not been synced on this device
// yet and a plain reconciliation otherwise. A merge with nothing to fold
// still marks the account synced and falls through to the canonical load.
func (c *Coordinator) syncAccount(ctx context.Context, account string) error {
	ctx = c.logg.WithAccount(ctx, account)
	synced, _ := c.store.ReadString(ctx, session.KeySyncedUser)
	if synced != account {
		report, err := c.Merge(ctx)
		if err != nil || !report.Empty {
			return err
		}
		c.store.Set(ctx, session.KeySyncedUser, account)
	}
	c.setPhase(enums.SyncPhaseIdle)
	return c.Reconcile(ctx)
}

func (c *Coordinator) authenticate(ctx context.Context) (string, bool) {
	token, ok := c.store.ReadString(ctx, c.tokenKey)
	if !ok {
		return "", false
	}
	claims, err := auth.InspectToken(c.jwt, token, c.now())
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			c.logg.Info(ctx, "auth token expired; staying guest")
		} else {
			c.logg.Warn(ctx, "auth token unusable; staying guest: "+err.Error())
		}
		return "", false
	}
	return claims.Account(), true
}

func (c *Coordinator) activate(state *session.EngineState, account string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = state
	c.account = account
}

func (c *Coordinator) hydrate(ctx context.Context, state *session.EngineState) {
	c.cart.Hydrate(ctx, state)
	c.wishlist.Hydrate(ctx, state)
}

func (c *Coordinator) watchKeys() []string {
	return []string{
		session.KeyGuestCart,
		session.KeyGuestWishlist,
		session.KeyUserCart,
		session.KeyUserWishlist,
		c.tokenKey,
	}
}
