package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/moodlens/internal/auth"
	"github.com/justestif/moodlens/internal/pipeline"
	"github.com/justestif/moodlens/internal/sync"
)

func newSyncCmd(opts *options) *cobra.Command {
	var (
		force    bool
		classify bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Imports recently played tracks from Spotify",
		Long: `Authorizes with Spotify on first use, then stores the user's 50 most recent plays as events.
With --classify, descriptors are fetched for new tracks and unclassified events are classified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			authn, err := newAuthenticator(cmd, a)
			if err != nil {
				return err
			}
			client, err := authn.Authenticate(cmd.Context())
			if err != nil {
				return err
			}

			syncer := sync.New(a.store, a.svc, sync.WithSyncCooldown(a.cfg.SyncCooldown()))
			res, err := syncer.SyncRecent(cmd.Context(), client, user, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d of %d recent plays (%d already present)\n",
				res.Inserted, res.Records, res.Duplicates)

			if !classify {
				return nil
			}
			bf, err := a.svc.BackfillDescriptors(cmd.Context(), user, 1)
			switch {
			case errors.Is(err, pipeline.ErrNoCatalog):
			case err != nil:
				return err
			default:
				printBatch(cmd, "Stored descriptors for", bf)
			}
			fill, err := a.svc.FillMissing(cmd.Context(), user, pipeline.FillOptions{})
			if err != nil {
				return err
			}
			printBatch(cmd, "Classified", fill)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore the sync cooldown")
	cmd.Flags().BoolVar(&classify, "classify", false, "fetch descriptors and classify after syncing")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Removes the cached Spotify authorization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			authn, err := newAuthenticator(cmd, a)
			if err != nil {
				return err
			}
			if err := authn.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newAuthenticator(cmd *cobra.Command, a *app) (*auth.Authenticator, error) {
	cache, err := auth.OpenTokenCache(a.cfg.Sync.TokenPath)
	if err != nil {
		return nil, err
	}
	return auth.New(a.cfg.Catalog.ClientID, a.cfg.Catalog.ClientSecret, a.cfg.Sync.RedirectURL,
		auth.WithTokenCache(cache),
		auth.WithOutput(cmd.OutOrStdout()),
	)
}
