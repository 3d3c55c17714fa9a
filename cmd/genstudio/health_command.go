package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/apiclient"
	"genstudio/internal/orchestrator"
)

const msgServiceUnavailable = "服务不可用"

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the generation service is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				status, err := s.client.Health(cmd.Context())
				if jsonOutput && err == nil {
					return writeJSON(cmd, status)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Service", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderField("Endpoint", s.client.BaseURL()))
				if err != nil {
					message := orchestrator.UserMessage(err, msgServiceUnavailable)
					fmt.Fprintln(out, renderStatusLine("Health", statusError, message, colorize))
					switch {
					case apiclient.IsUnavailable(err):
						fmt.Fprintln(out, renderField("Hint", "service unreachable; check api.base_url and that the service is running"))
					case apiclient.StatusCode(err) > 0:
						fmt.Fprintln(out, renderField("HTTP status", strconv.Itoa(apiclient.StatusCode(err))))
					}
					return fmt.Errorf("health check: %w", err)
				}

				kind := statusOK
				switch strings.ToLower(strings.TrimSpace(status.Status)) {
				case "ok", "healthy", "up":
				default:
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Health", kind, status.Status, colorize))
				if status.Service != "" {
					fmt.Fprintln(out, renderField("Service", status.Service))
				}
				if status.Version != "" {
					fmt.Fprintln(out, renderField("Version", status.Version))
				}
				if status.Environment != "" {
					fmt.Fprintln(out, renderField("Environment", status.Environment))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}
