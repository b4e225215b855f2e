// cmd/syncctl/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"crmsync/internal/app/ctl"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "syncctl - operator tool for the CRM sync engine",
	Long: `syncctl manages a running sync engine over its admin API.

It lists and disconnects provider connections and inspects or replays
dead-lettered sync jobs. The target server and API key come from the
--server and --api-key flags or the SYNCCTL_SERVER and SYNCCTL_API_KEY
environment variables.`,
	PersistentPreRunE: setupClient,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupClient(cmd *cobra.Command, _ []string) error {
	viper.SetEnvPrefix("syncctl")
	viper.AutomaticEnv()

	if serverURL == "" {
		serverURL = viper.GetString("server")
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
	if serverURL == "" {
		return fmt.Errorf("server address is required (--server or SYNCCTL_SERVER)")
	}

	client := ctl.New(ctl.Options{BaseURL: serverURL, APIKey: apiKey})
	cmd.SetContext(context.WithValue(cmd.Context(), ctl.ContextKey, client))

	return nil
}

func init() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "sync engine base URL, e.g. http://localhost:8080")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "admin API key")

	// Commands are attached in init() of the respective files.
}
