// cmd/syncctl/cmd/connections/disconnect.go
package connections

import (
	"fmt"

	"crmsync/internal/app/ctl"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var disconnectTenant string

var DisconnectCmd = &cobra.Command{
	Use:   "disconnect <provider>",
	Short: "Disconnect a tenant from a provider",
	Long: `Disconnect a tenant from a provider.

Pending jobs for the pair are moved to the dead-letter store and the
workers stop syncing it. Reconnecting requires the OAuth flow again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ok := cmd.Context().Value(ctl.ContextKey).(*ctl.Client)
		if !ok {
			return fmt.Errorf("client is not initialized")
		}
		if disconnectTenant == "" {
			return fmt.Errorf("tenant id is required (--tenant)")
		}

		provider := args[0]
		if err := client.Disconnect(cmd.Context(), disconnectTenant, provider); err != nil {
			return fmt.Errorf("failed to disconnect %s: %w", provider, err)
		}

		fmt.Printf("%s tenant %s disconnected from %s\n", color.GreenString("OK:"), disconnectTenant, provider)
		return nil
	},
}

func init() {
	DisconnectCmd.Flags().StringVarP(&disconnectTenant, "tenant", "t", "", "tenant id")
}
