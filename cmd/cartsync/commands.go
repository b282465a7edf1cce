package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/coordinator"
	"github.com/angelmondragon/packfinderz-cartsync/internal/localstore"
	"github.com/angelmondragon/packfinderz-cartsync/internal/session"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type cli struct {
	logg     *logger.Logger
	store    *localstore.Store
	coord    *coordinator.Coordinator
	registry *prometheus.Registry
	tokenKey string
	out      io.Writer
}

// start loads the cached session and lets the login-time sync finish so every
// command sees reconciled state.
func (c *cli) start(ctx context.Context) error {
	if err := c.coord.Init(ctx); err != nil {
		return err
	}
	c.coord.Wait()
	return nil
}

// settle sends debounced updates, waits for remote work and prints the session.
func (c *cli) settle(ctx context.Context) error {
	c.coord.FlushQuantities(ctx)
	c.coord.Wait()
	return c.render()
}

// action adapts a session operation into a cobra RunE that prints the settled
// state afterwards.
func action(rt *runtime, fn func(ctx context.Context, app *cli, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := rt.ensure(cmd)
		if err != nil {
			return err
		}
		if err := fn(cmd.Context(), app, args); err != nil {
			return err
		}
		return app.settle(cmd.Context())
	}
}

type metaFlags struct {
	name  string
	price string
	image string
}

func (m *metaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.name, "name", "", "display name snapshot")
	cmd.Flags().StringVar(&m.price, "price", "", "unit price snapshot")
	cmd.Flags().StringVar(&m.image, "image", "", "image url snapshot")
}

func (m metaFlags) meta() (types.ItemMeta, error) {
	meta := types.ItemMeta{Name: m.name, Image: m.image}
	if m.price != "" {
		price, err := decimal.NewFromString(m.price)
		if err != nil {
			return types.ItemMeta{}, fmt.Errorf("price %q: %w", m.price, err)
		}
		meta.UnitPrice = price
	}
	return meta, nil
}

func newShowCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active session",
		Args:  cobra.NoArgs,
		RunE: action(rt, func(context.Context, *cli, []string) error {
			return nil
		}),
	}
}

func newAddCommand(rt *runtime) *cobra.Command {
	var (
		flags     metaFlags
		color     string
		colorCode string
	)
	cmd := &cobra.Command{
		Use:   "add <productId> [qty]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: action(rt, func(ctx context.Context, app *cli, args []string) error {
			qty := 1
			if len(args) == 2 {
				parsed, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("qty %q is not a number", args[1])
				}
				qty = parsed
			}
			meta, err := flags.meta()
			if err != nil {
				return err
			}
			var variant *types.ColorVariant
			if color != "" {
				variant = &types.ColorVariant{Name: color, Code: colorCode}
			}
			outcome, err := app.coord.AddToCart(ctx, args[0], qty, variant, meta)
			if err != nil {
				return err
			}
			app.logg.Debug(ctx, "cart add: "+string(outcome))
			return nil
		}),
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&color, "color", "", "color variant name")
	cmd.Flags().StringVar(&colorCode, "color-code", "", "color variant code")
	return cmd
}

func newRemoveCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove a cart line (productId::color)",
		Args:  cobra.ExactArgs(1),
		RunE: action(rt, func(ctx context.Context, app *cli, args []string) error {
			return app.coord.RemoveFromCart(ctx, args[0])
		}),
	}
}

func newIncCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "inc <key> <delta>",
		Short: "Change a line quantity by delta",
		Args:  cobra.ExactArgs(2),
		RunE: action(rt, func(ctx context.Context, app *cli, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("delta %q is not a number", args[1])
			}
			return app.coord.UpdateQuantity(ctx, args[0], delta)
		}),
	}
}

func newClearCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: action(rt, func(ctx context.Context, app *cli, _ []string) error {
			return app.coord.ClearCart(ctx)
		}),
	}
}

func newWishCommand(rt *runtime) *cobra.Command {
	var flags metaFlags
	cmd := &cobra.Command{
		Use:   "wish <productId>",
		Short: "Add a product to the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: action(rt, func(ctx context.Context, app *cli, args []string) error {
			meta, err := flags.meta()
			if err != nil {
				return err
			}
			outcome, err := app.coord.AddToWishlist(ctx, args[0], meta)
			if err != nil {
				return err
			}
			app.logg.Debug(ctx, "wishlist add: "+string(outcome))
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}

func newUnwishCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "unwish <productId>",
		Short: "Remove a product from the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: action(rt, func(ctx context.Context, app *cli, args []string) error {
			_, err := app.coord.RemoveFromWishlist(ctx, args[0])
			return err
		}),
	}
}

func newToggleCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <productId>",
		Short: "Flip wishlist membership",
		Args:  cobra.ExactArgs(1),
		RunE: action(rt, func(ctx context.Context, app *cli, args []string) error {
			_, err := app.coord.ToggleWishlist(ctx, args[0], types.ItemMeta{})
			return err
		}),
	}
}

func newLoginCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store an auth token and sync the account",
		Args:  cobra.ExactArgs(1),
		RunE: action(rt, func(ctx context.Context, app *cli, args []string) error {
			if err := app.store.WriteString(ctx, app.tokenKey, strings.TrimSpace(args[0])); err != nil {
				return err
			}
			return app.coord.Login(ctx)
		}),
	}
}

func newLogoutCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the token and every cached list",
		Args:  cobra.NoArgs,
		RunE: action(rt, func(ctx context.Context, app *cli, _ []string) error {
			if err := app.coord.Logout(ctx); err != nil {
				return err
			}
			app.store.Remove(ctx, app.tokenKey)
			return nil
		}),
	}
}

func newWatchCommand(rt *runtime) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing and print events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := rt.ensure(cmd)
			if err != nil {
				return err
			}
			return app.watch(cmd.Context(), metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func (c *cli) watch(ctx context.Context, metricsAddr string) error {
	if metricsAddr != "" {
		server := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.logg.Error(ctx, "metrics server stopped", err)
			}
		}()
		defer server.Close()
	}

	var mu sync.Mutex
	enc := json.NewEncoder(c.out)
	unsubscribe := c.coord.Subscribe(func(e session.Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Type == session.EventStateChanged {
			_ = enc.Encode(c.view())
			return
		}
		_ = enc.Encode(e)
	})
	defer unsubscribe()

	mu.Lock()
	_ = enc.Encode(c.view())
	mu.Unlock()

	c.logg.Info(ctx, "watching for changes")
	if err := c.coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
