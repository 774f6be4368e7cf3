package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	URL     string
	Timeout time.Duration
}

func createStatusCommand() *cobra.Command {
	flags := &StatusFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a running gateway's worker status",
		Long: `Query a running gateway's health endpoint and print the supervisor
status snapshot.

Examples:
  chatrelay status
  chatrelay status --url=http://remote:3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.URL, "url", "http://localhost:3001", "gateway base URL")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func runStatus(cmd *cobra.Command, flags *StatusFlags) error {
	client := &http.Client{Timeout: flags.Timeout}
	resp, err := client.Get(flags.URL + "/healthz")
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	cmd.Println(string(body))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway reports not ready (HTTP %d)", resp.StatusCode)
	}
	return nil
}
