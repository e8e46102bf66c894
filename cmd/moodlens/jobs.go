package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/justestif/moodlens/internal/ingest"
	"github.com/justestif/moodlens/internal/model"
	"github.com/justestif/moodlens/internal/pipeline"
)

func newImportCmd(opts *options) *cobra.Command {
	var (
		source   string
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Imports a streaming history export",
		Long:  `Reads a JSON streaming history export and stores each track play as a listening event. Importing the same file twice is harmless.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			src, err := model.ParseSource(source)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			recs, err := ingest.ParseStreamingHistory(f)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			if timezone != "" {
				if err := a.svc.SetTimezone(cmd.Context(), user, timezone); err != nil {
					return err
				}
			}
			res, err := a.svc.Import(cmd.Context(), user, recs, src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d plays (%d already present)\n",
				res.Inserted, res.Records, res.Duplicates)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", string(model.SourceUpload), "event source: sync, upload, demo, demo-rich")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone to record for the user")
	return cmd
}

func newReclassifyCmd(opts *options) *cobra.Command {
	var (
		mode  string
		aiArg string
		days  int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Recomputes classifications for recent events",
		Long:  `Recomputes the emotion of the user's events in the last --days days. Adaptive and soft modes derive thresholds from the user's whole history.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			m, err := pipeline.ParseMode(mode)
			if err != nil {
				return err
			}
			aiMode, err := pipeline.ParseAIMode(aiArg)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			ro := pipeline.ReclassifyOptions{Mode: m, AI: aiMode, Limit: limit}
			if days > 0 {
				ro.Since = time.Now().AddDate(0, 0, -days)
			}
			res, err := a.svc.Reclassify(cmd.Context(), user, ro)
			if err != nil {
				return err
			}
			printBatch(cmd, "Reclassified", res)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(pipeline.ModeFixed), "classification mode: fixed, adaptive, soft")
	cmd.Flags().StringVar(&aiArg, "ai", string(pipeline.AIOff), "external suggestions: off, auto, only")
	cmd.Flags().IntVar(&days, "days", pipeline.DefaultReclassifyDays, "window in days")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of events (default from config)")
	return cmd
}

func newFillMissingCmd(opts *options) *cobra.Command {
	var (
		aiArg string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "fill-missing",
		Short: "Classifies events that have no classification yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			aiMode, err := pipeline.ParseAIMode(aiArg)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.svc.FillMissing(cmd.Context(), user, pipeline.FillOptions{Limit: limit, AI: aiMode})
			if err != nil {
				return err
			}
			printBatch(cmd, "Classified", res)
			return nil
		},
	}
	cmd.Flags().StringVar(&aiArg, "ai", string(pipeline.AIOff), "external suggestions: off, auto, only")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of events (default from config)")
	return cmd
}

func newBackfillCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "backfill-features",
		Short: "Fetches audio descriptors for played tracks that lack them",
		Args:  cobra.NoArgs,
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

			res, err := a.svc.BackfillDescriptors(cmd.Context(), user, days)
			if err != nil {
				return err
			}
			printBatch(cmd, "Stored descriptors for", res)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "look at tracks played in the last days (0 for all)")
	return cmd
}

func newDeleteDataCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-data",
		Short: "Deletes the user's events and classifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete data for %s without --yes", user)
			}
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.svc.DeleteUserData(cmd.Context(), user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d events for %s\n", n, user)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func printBatch(cmd *cobra.Command, verb string, res pipeline.BatchResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d (created %d, updated %d, skipped %d, errors %d)\n",
		verb, res.Created+res.Updated, res.Processed, res.Created, res.Updated, res.Skipped, res.Errors)
}
