package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jellywatch/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, scheduler and Jellyfin status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				if api.IsUnauthorized(err) {
					return wrapClientError(err, client.BaseURL())
				}
				// An unreachable daemon is a status, not a failure.
				if asJSON {
					return writeJSON(cmd, api.DaemonStatus{})
				}
				for _, line := range renderSectionHeader("jellywatch", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "Not reachable at "+client.BaseURL(), colorize))
				return nil
			}

			if asJSON {
				return writeJSON(cmd, status)
			}
			for _, line := range renderSectionHeader("jellywatch", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonStatusLines(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			health, err := client.DatabaseHealth(cmd.Context())
			fmt.Fprintln(stdout, databaseHealthLine(health, err, colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if !resp.Running {
					fmt.Fprintln(stdout, "Scheduler is stopped")
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No jobs scheduled")
					return nil
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"Job", "Every", "Next run", "Last run", "Outcome"},
					jobRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw job table")
	return cmd
}

func jobRows(jobs []api.JobView) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		lastRun, outcome := "-", "-"
		if job.LastRun != nil {
			lastRun = job.LastRun.At.Local().Format(time.DateTime)
			outcome = job.LastRun.Outcome
			if job.LastRun.Error != "" {
				outcome += ": " + job.LastRun.Error
			}
		}
		rows = append(rows, []string{
			job.ID,
			formatMinutes(job.IntervalMinutes),
			displayTime(job.Next),
			lastRun,
			outcome,
		})
	}
	return rows
}

func formatMinutes(minutes int) string {
	if minutes > 0 && minutes%60 == 0 {
		return strconv.Itoa(minutes/60) + "h"
	}
	return strconv.Itoa(minutes) + "m"
}

// displayTime renders an API timestamp in local time, passing through
// anything it cannot parse.
func displayTime(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format(time.DateTime)
}

func newSyncNowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-now",
		Short: "Sync the Jellyfin library list immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.SyncNow(cmd.Context())
				if err != nil {
					return err
				}
				if !resp.Success {
					return errors.New("sync failed: " + resp.Error)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %d librar%s\n", len(resp.Libraries), pluralY(len(resp.Libraries)))
				return nil
			})
		},
	}
}

func newLibrariesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "libraries",
		Short: "List Jellyfin libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				libs, err := client.Libraries(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, libs)
				}
				stdout := cmd.OutOrStdout()
				if len(libs) == 0 {
					fmt.Fprintln(stdout, "No libraries found")
					return nil
				}
				rows := make([][]string, 0, len(libs))
				for _, lib := range libs {
					kind := lib.CollectionType
					if kind == "" {
						kind = "-"
					}
					rows = append(rows, []string{lib.Name, kind, lib.ID})
				}
				fmt.Fprint(stdout, renderTable([]string{"Name", "Type", "ID"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print libraries as JSON")
	return cmd
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
