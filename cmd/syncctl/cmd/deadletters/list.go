// cmd/syncctl/cmd/deadletters/list.go
package deadletters

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
	listLimit  int
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters",
	Long: `List dead-lettered jobs, newest first, optionally filtered by tenant.

The reason column explains why the job was parked: attempts_exhausted,
auth_revoked, validation_rejected or connection_disconnected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ok := cmd.Context().Value(ctl.ContextKey).(*ctl.Client)
		if !ok {
			return fmt.Errorf("client is not initialized")
		}

		page, err := client.ListDeadLetters(cmd.Context(), listTenant, listLimit)
		if err != nil {
			return fmt.Errorf("failed to list dead letters: %w", err)
		}

		switch listFormat {
		case "json":
			return printDeadLettersJSON(page)
		default:
			return printDeadLettersTable(page)
		}
	},
}

func printDeadLettersTable(page *ctl.DeadLetterPage) error {
	if len(page.Letters) == 0 {
		fmt.Println("No dead letters found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTENANT\tPROVIDER\tTYPE\tREASON\tATTEMPTS\tLAST ERROR\tCREATED\t\n")

	for _, dl := range page.Letters {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t\n",
			dl.ID,
			dl.TenantID,
			dl.Provider,
			dl.Type,
			colorReason(dl.Reason),
			dl.Attempts,
			truncate(dl.LastError, 40),
			dl.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	w.Flush()
	fmt.Printf("\nShowing %d of %d dead letters\n", len(page.Letters), page.Total)
	return nil
}

func printDeadLettersJSON(page *ctl.DeadLetterPage) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(page)
}

func colorReason(reason string) string {
	switch reason {
	case "attempts_exhausted":
		return color.YellowString(reason)
	case "auth_revoked", "validation_rejected":
		return color.RedString(reason)
	default:
		return reason
	}
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func init() {
	ListCmd.Flags().StringVarP(&listTenant, "tenant", "t", "", "filter by tenant id")
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, json)")
	ListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of dead letters to show")
}
