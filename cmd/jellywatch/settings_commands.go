package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jellywatch/internal/api"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the Jellyfin service settings",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored service settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				svc, err := client.Service(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, svc)
				}
				printServiceSettings(cmd, svc)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print settings as JSON")
	return cmd
}

func printServiceSettings(cmd *cobra.Command, svc api.ServiceSettings) {
	stdout := cmd.OutOrStdout()
	if !svc.Configured {
		fmt.Fprintln(stdout, "Jellyfin is not configured")
	} else {
		fmt.Fprintf(stdout, "Jellyfin URL: %s\n", svc.JellyfinURL)
		fmt.Fprintf(stdout, "API key:      %s\n", svc.JellyfinAPIKey)
		if svc.UpdatedAt != "" {
			fmt.Fprintf(stdout, "Updated:      %s\n", displayTime(svc.UpdatedAt))
		}
	}
	rows := make([][]string, 0, len(svc.Monitors))
	for _, m := range svc.Monitors {
		rows = append(rows, []string{m.Name, yesNo(m.Enabled), m.Timeframe})
	}
	fmt.Fprint(stdout, renderTable([]string{"Monitor", "Enabled", "Timeframe"}, rows, nil))
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var url string
	var apiKey string
	var monitors []string
	var clearMonitors bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save service settings and rebuild the job table",
		Long: "Save service settings and rebuild the job table.\n\n" +
			"Each --monitor enables one monitor as name or name=timeframe, for example\n" +
			"--monitor transcoding=\"4 hours\". When --monitor is given the listed monitors\n" +
			"replace the enabled set; otherwise the current monitors are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				current, err := client.Service(cmd.Context())
				if err != nil {
					return err
				}
				req, err := buildServiceRequest(current, url, apiKey, monitors, clearMonitors)
				if err != nil {
					return err
				}
				saved, err := client.SaveService(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings saved")
				printServiceSettings(cmd, saved)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Jellyfin base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Jellyfin API key (kept when omitted)")
	cmd.Flags().StringArrayVar(&monitors, "monitor", nil, "Enable a monitor as name[=timeframe] (repeatable)")
	cmd.Flags().BoolVar(&clearMonitors, "clear-monitors", false, "Disable every monitor")
	return cmd
}

// buildServiceRequest merges flags over the current settings. An empty
// API key lets the daemon keep the stored one.
func buildServiceRequest(current api.ServiceSettings, url, apiKey string, monitors []string, clearMonitors bool) (api.ServiceRequest, error) {
	req := api.ServiceRequest{
		JellyfinURL:    strings.TrimSpace(url),
		JellyfinAPIKey: strings.TrimSpace(apiKey),
	}
	if req.JellyfinURL == "" {
		req.JellyfinURL = current.JellyfinURL
	}
	if req.JellyfinURL == "" {
		return api.ServiceRequest{}, fmt.Errorf("--url is required until Jellyfin is configured")
	}

	switch {
	case clearMonitors:
		req.Monitors = []api.MonitorSettingRequest{}
	case len(monitors) > 0:
		for _, raw := range monitors {
			name, timeframe, _ := strings.Cut(raw, "=")
			name = strings.TrimSpace(name)
			if name == "" {
				return api.ServiceRequest{}, fmt.Errorf("invalid --monitor %q", raw)
			}
			req.Monitors = append(req.Monitors, api.MonitorSettingRequest{
				Name:      name,
				Enabled:   true,
				Timeframe: strings.TrimSpace(timeframe),
			})
		}
	default:
		for _, m := range current.Monitors {
			req.Monitors = append(req.Monitors, api.MonitorSettingRequest{
				Name:      m.Name,
				Enabled:   m.Enabled,
				Timeframe: m.Timeframe,
			})
		}
	}
	return req, nil
}
