// cmd/syncctl/cmd/connections/list.go
package connections

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"crmsync/internal/app/ctl"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	listTenant string
	listFormat string
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider connections",
	Long: `List provider connections, optionally filtered by tenant.

The status column shows connected or disconnected. A disconnect can come
from the operator, the tenant, or a revoked provider token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ok := cmd.Context().Value(ctl.ContextKey).(*ctl.Client)
		if !ok {
			return fmt.Errorf("client is not initialized")
		}

		conns, err := client.ListConnections(cmd.Context(), listTenant)
		if err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}

		switch listFormat {
		case "json":
			return printConnectionsJSON(conns)
		default:
			return printConnectionsTable(conns)
		}
	},
}

func printConnectionsTable(conns []ctl.Connection) error {
	if len(conns) == 0 {
		fmt.Println("No connections found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PROVIDER\tSTATUS\tACCOUNT\tLAST SYNC\t\n")

	for _, c := range conns {
		lastSync := "never"
		if !c.LastSyncAt.IsZero() && c.LastSyncAt.Unix() != 0 {
			lastSync = c.LastSyncAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", c.Provider, colorStatus(c.Status), c.RemoteAccountID, lastSync)
	}

	w.Flush()
	fmt.Printf("\nTotal connections: %d\n", len(conns))
	return nil
}

func printConnectionsJSON(conns []ctl.Connection) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(conns)
}

func colorStatus(status string) string {
	switch status {
	case "connected":
		return color.GreenString(status)
	case "disconnected":
		return color.RedString(status)
	default:
		return status
	}
}

func init() {
	ListCmd.Flags().StringVarP(&listTenant, "tenant", "t", "", "filter by tenant id")
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, json)")
}
