package connections

import "github.com/spf13/cobra"

var ConnectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage provider connections",
	Long: `Inspect and manage per-tenant provider connections.

A connection is the link between one tenant and one external provider
account. Disconnecting it stops sync in both directions and drops the
tenant's pending jobs for that provider.`,
}
