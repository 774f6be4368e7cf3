package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "chatrelay",
		Short: "Chat-completion gateway over a supervised worker process",
		Long: `Chatrelay accepts OpenAI-style chat-completion requests and relays them
to a worker process it spawns and supervises on loopback.

Examples:
  chatrelay serve --api-key=sk-... --worker-cmd="llm-worker"
  chatrelay serve --config=config.toml --api-key=sk-...
  chatrelay status --url=http://localhost:3001`,
	}

	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file (optional)")

	root.AddCommand(
		createServeCommand(globalFlags),
		createStatusCommand(),
	)
	return root
}
