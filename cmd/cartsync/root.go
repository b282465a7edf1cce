package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

type openFunc func(ctx context.Context) (*cli, func(context.Context) error, error)

// runtime opens the session lazily so help and usage errors never touch the
// store or the network.
type runtime struct {
	open    openFunc
	app     *cli
	closeFn func(context.Context) error
}

func (r *runtime) ensure(cmd *cobra.Command) (*cli, error) {
	if r.app != nil {
		r.app.out = cmd.OutOrStdout()
		return r.app, nil
	}
	if r.open == nil {
		return nil, errors.New("no session factory configured")
	}
	app, closeFn, err := r.open(cmd.Context())
	if err != nil {
		return nil, err
	}
	app.out = cmd.OutOrStdout()
	r.app, r.closeFn = app, closeFn
	return app, nil
}

func (r *runtime) close(ctx context.Context) error {
	if r.closeFn == nil {
		return nil
	}
	err := r.closeFn(ctx)
	r.app, r.closeFn = nil, nil
	return err
}

func newRootCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cartsync",
		Short:         "Inspect and edit the local cart and wishlist",
		Long:          "cartsync keeps the device cart and wishlist in sync with the commerce API, merging guest lists into the account on login.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newShowCommand(rt),
		newAddCommand(rt),
		newRemoveCommand(rt),
		newIncCommand(rt),
		newClearCommand(rt),
		newWishCommand(rt),
		newUnwishCommand(rt),
		newToggleCommand(rt),
		newLoginCommand(rt),
		newLogoutCommand(rt),
		newWatchCommand(rt),
	)
	return cmd
}
