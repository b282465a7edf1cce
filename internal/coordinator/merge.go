package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/latch"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"go.uber.org/multierr"
)

// MergeReport summarizes one merge run. Errors aggregates every per-item and
// reload failure; none of them aborts the run. Empty marks a run that found
// no guest items and did nothing.
type MergeReport struct {
	Skipped           bool
	Empty             bool
	CartAttempted     int
	CartFailed        int
	WishlistAttempted int
	WishlistDeduped   int
	WishlistFailed    int
	Errors            error
}

// Outcome labels the report for metrics and logs.
func (r MergeReport) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Empty:
		return "empty"
	case r.Errors != nil:
		return "partial"
	default:
		return "success"
	}
}

// Merge folds the guest cart and wishlist into the authenticated account:
// guest cart lines become delta adds, guest wishlist entries not already
// saved are added, the canonical state is reloaded, and the guest entries are
// cleared from the local store exactly once regardless of failures. With an
// empty guest cart and wishlist it returns without any remote call or state
// change.
func (c *Coordinator) Merge(ctx context.Context) (MergeReport, error) {
	ctx = c.logg.WithOperation(ctx, "merge")
	if c.Active() != c.user {
		return MergeReport{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "merge requires an authenticated session")
	}
	if !c.latches.TryAcquire(latch.MergeInProgress) {
		c.logg.Info(ctx, "merge already in progress; skipping")
		return MergeReport{Skipped: true}, nil
	}
	defer c.latches.Release(latch.MergeInProgress)

	if len(c.guest.Cart()) == 0 && len(c.guest.Wishlist()) == 0 {
		c.logg.Info(ctx, "guest cart and wishlist empty; nothing to merge")
		return MergeReport{Empty: true}, nil
	}

	c.setPhase(enums.SyncPhaseMerging)
	account := c.Account()

	var report MergeReport
	c.mergeCart(ctx, &report)
	c.mergeWishlist(ctx, &report)

	c.store.Remove(ctx, session.KeyGuestCart)
	c.store.Remove(ctx, session.KeyGuestWishlist)
	c.guest.Reset()
	c.store.Set(ctx, session.KeySyncedUser, account)

	c.metrics.IncMerge(report.Outcome())
	ctx = c.logg.WithFields(ctx, map[string]any{
		"cart_attempted":     report.CartAttempted,
		"cart_failed":        report.CartFailed,
		"wishlist_attempted": report.WishlistAttempted,
		"wishlist_deduped":   report.WishlistDeduped,
		"wishlist_failed":    report.WishlistFailed,
	})
	if report.Errors != nil {
		c.logg.Warn(ctx, fmt.Sprintf("merge finished with failures: %v", report.Errors))
		c.Notice(ctx, session.Notice{
			Level:   enums.NoticeLevelWarning,
			Code:    session.CodeRemoteSkipped,
			Message: "some saved items could not be added to your account",
		})
	} else {
		c.logg.Info(ctx, "merge complete")
	}
	c.settle(report.Errors != nil)
	return report, nil
}

func (c *Coordinator) mergeCart(ctx context.Context, report *MergeReport) {
	lines := types.AggregateByKey(c.guest.Cart())
	for idx, line := range lines {
		if idx > 0 {
			if err := c.pause(ctx); err != nil {
				report.Errors = multierr.Append(report.Errors, err)
				report.CartFailed += len(lines) - idx
				break
			}
		}
		report.CartAttempted++
		if _, err := c.cartRemote.AddItem(ctx, line.ProductID, line.Quantity, line.Color); err != nil {
			report.CartFailed++
			report.Errors = multierr.Append(report.Errors, fmt.Errorf("cart %s: %w", line.Key, err))
			c.logg.Warn(c.logg.WithItemKey(ctx, line.Key), "merge cart add failed: "+err.Error())
		}
	}
	if err := c.cart.Reload(ctx); err != nil {
		report.Errors = multierr.Append(report.Errors, fmt.Errorf("reload cart: %w", err))
	}
}

func (c *Coordinator) mergeWishlist(ctx context.Context, report *MergeReport) {
	guest := c.guest.Wishlist()
	known, err := c.wishlistRemote.FetchAll(ctx)
	if err != nil {
		c.logg.Warn(ctx, "canonical wishlist unavailable; merging without dedup: "+err.Error())
		known = nil
	}

	for _, item := range guest {
		if known.Contains(item.ProductID) {
			report.WishlistDeduped++
			continue
		}
		if report.WishlistAttempted > 0 || report.CartAttempted > 0 {
			if err := c.pause(ctx); err != nil {
				report.Errors = multierr.Append(report.Errors, err)
				break
			}
		}
		report.WishlistAttempted++
		err := c.wishlistRemote.AddItem(ctx, item.ProductID)
		if err == nil || pkgerrors.Is(err, pkgerrors.CodeAlreadyExists) {
			continue
		}
		report.WishlistFailed++
		report.Errors = multierr.Append(report.Errors, fmt.Errorf("wishlist %s: %w", item.ProductID, err))
		c.logg.Warn(c.logg.WithItemKey(ctx, item.ProductID), "merge wishlist add failed: "+err.Error())
	}
	if err := c.wishlist.Reload(ctx); err != nil {
		report.Errors = multierr.Append(report.Errors, fmt.Errorf("reload wishlist: %w", err))
	}
}

func (c *Coordinator) pause(ctx context.Context) error {
	if c.mergeDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.mergeDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
