package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/lightsched/internal/app"
	"github.com/dokzlo13/lightsched/internal/config"
	"github.com/dokzlo13/lightsched/internal/ledger"
	"github.com/dokzlo13/lightsched/internal/schedule"
	"github.com/dokzlo13/lightsched/internal/store"
)

var errLedgerDisabled = errors.New("sync ledger is disabled")

// cliEnv carries what PersistentPreRunE builds for the subcommands.
type cliEnv struct {
	configPath string
	app        *app.App
}

func (e *cliEnv) services() *app.Services {
	return e.app.Services()
}

// run executes the CLI and releases the application afterwards, whether or
// not the command succeeded.
func run(args []string, stdout io.Writer) error {
	env := &cliEnv{}
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(stdout)

	err := root.Execute()
	if env.app != nil {
		if stopErr := env.app.Stop(); stopErr != nil {
			log.Error().Err(stopErr).Msg("Error during shutdown")
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
	}
	return err
}

func newRootCmd(env *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:           "lightsched",
		Short:         "Inspect and edit a smart light's brightness schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)
			log.Debug().Str("config", env.configPath).Str("command", cmd.Name()).Msg("Starting lightsched")

			env.app, err = app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&env.configPath, "config", "c", "config.yaml", "Path to configuration file")

	root.AddCommand(
		newShowCmd(env),
		newBrightnessCmd(env),
		newTimeCmd(env),
		newModeCmd(env),
		newAddCmd(env),
		newRemoveCmd(env),
		newHistoryCmd(env),
		newServeCmd(env),
	)
	return root
}

func newShowCmd(env *cliEnv) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Fetch and print the current schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := env.services()
			if err := svc.Syncer.Fetch(cmd.Context()); err != nil {
				return err
			}
			st := svc.Store.State()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			return renderState(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full state as JSON")
	return cmd
}

func newBrightnessCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "brightness <label> <warm|cool> <value>",
		Short: "Set one brightness channel of an entry (0-100, rounded)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := schedule.ParseChannel(args[1])
			if err != nil {
				return err
			}
			svc := env.services()
			return editAndSave(cmd, env, func() error {
				return svc.Edit.ChangeBrightness(args[0], ch, args[2])
			})
		},
	}
}

func newTimeCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "time <bed_time|night_time> <HH:mm>",
		Short: "Move bed time or night time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := env.services()
			return editAndSave(cmd, env, func() error {
				return svc.Edit.ChangeTime(args[0], args[1])
			})
		},
	}
}

func newModeCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:       "mode <dayNight|scheduled|demo>",
		Short:     "Switch the operating mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{schedule.ModeDayNight.String(), schedule.ModeScheduled.String(), schedule.ModeDemo.String()},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := schedule.ParseMode(args[0])
			if err != nil {
				return err
			}
			svc := env.services()
			return editAndSave(cmd, env, func() error {
				return svc.Edit.ChangeMode(mode)
			})
		},
	}
}

func newAddCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "add <HH:mm> <warm> <cool>",
		Short: "Add a free-form entry used in scheduled mode",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := env.services()
			return editAndSave(cmd, env, func() error {
				return svc.Edit.AddEntry(args[0], args[1], args[2])
			})
		},
	}
}

func newRemoveCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <label>",
		Short: "Remove a free-form entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := env.services()
			return editAndSave(cmd, env, func() error {
				return svc.Edit.RemoveEntry(args[0])
			})
		},
	}
}

func newHistoryCmd(env *cliEnv) *cobra.Command {
	var (
		limit     int
		requestID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fetch and save attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l := env.services().Ledger
			if l == nil {
				return errLedgerDisabled
			}

			var (
				entries []*ledger.Entry
				err     error
			)
			if requestID != "" {
				entries, err = l.ByRequestID(requestID)
			} else {
				entries, err = l.Recent(limit)
			}
			if err != nil {
				return err
			}
			return renderHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Only show events of one sync attempt")
	return cmd
}

func newServeCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Keep the schedule state in memory and serve health, state and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.SignalContext()
			if err := env.app.Start(ctx); err != nil {
				return err
			}
			env.app.Wait()
			return nil
		},
	}
}

// editAndSave fetches the latest document, applies one edit and saves it.
// Nothing is posted when the edit leaves the document unchanged.
func editAndSave(cmd *cobra.Command, env *cliEnv, apply func() error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc := env.services()

	if err := svc.Syncer.Fetch(ctx); err != nil {
		return err
	}
	if err := apply(); err != nil {
		return err
	}

	st := svc.Store.State()
	if st.Data.Equal(st.LastSavedData) {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes")
		return nil
	}
	if err := svc.Syncer.Save(ctx); err != nil {
		return err
	}
	return renderState(cmd.OutOrStdout(), svc.Store.State())
}

func renderState(w io.Writer, st store.State) error {
	status := "saved"
	switch {
	case st.Status.IsSubmissionError:
		status = "error"
	case st.Status.UnsavedChanges:
		status = "unsaved changes"
	}
	fmt.Fprintf(w, "Mode: %s (%s)\n", st.Data.Mode, status)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tTIME\tWARM\tCOOL")
	for _, e := range st.Data.BrightnessSchedule {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", e.Label, schedule.FormatTime(e.Time), e.WarmBrightness, e.CoolBrightness)
	}
	return tw.Flush()
}

func renderHistory(w io.Writer, entries []*ledger.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOPERATION\tEVENT\tDURATION\tREQUEST\tERROR")
	for _, e := range entries {
		dur := "-"
		if e.Duration > 0 {
			dur = strconv.FormatInt(e.Duration.Milliseconds(), 10) + "ms"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Operation, e.EventType, dur, e.RequestID, e.Error)
	}
	return tw.Flush()
}
