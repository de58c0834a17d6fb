// Command personaflow runs persona workflow graphs from the command line
// and serves them over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"personaflow/logging"
	"personaflow/model"
	"personaflow/model/anthropic"
	"personaflow/model/openai"
)

var (
	verbose      bool
	providerName string
)

var rootCmd = &cobra.Command{
	Use:   "personaflow",
	Short: "Persona workflow engine",
	Long: `personaflow executes workflow graphs of AI personas, teams, tools,
memory cells and communication channels.

Provider credentials are read from the environment (or a .env file):
  OPENAI_API_KEY     for --provider openai
  ANTHROPIC_API_KEY  for --provider anthropic`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine; the environment may already be set.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "openai", "model provider (openai, anthropic, mock)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() logging.Logger {
	level := logging.LogLevelInfo
	if verbose {
		level = logging.LogLevelDebug
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    "text",
		Output:    os.Stderr,
		Component: "personaflow",
	})
}

func newProvider() (model.Provider, error) {
	switch providerName {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return openai.New(), nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = key
		}), nil
	case "mock":
		return model.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
}
