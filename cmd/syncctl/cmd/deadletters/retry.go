// cmd/syncctl/cmd/deadletters/retry.go
package deadletters

import (
	"fmt"
	"strconv"

	"crmsync/internal/app/ctl"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var RetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Replay a dead letter onto the sync queue",
	Long: `Replay a dead letter onto the sync queue with a fresh attempt budget.

The dead letter is removed and a new job id is printed. If an equivalent
job was enqueued in the meantime the replay merges into it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, ok := cmd.Context().Value(ctl.ContextKey).(*ctl.Client)
		if !ok {
			return fmt.Errorf("client is not initialized")
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid dead letter id %q", args[0])
		}

		jobID, err := client.RetryDeadLetter(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to replay dead letter %d: %w", id, err)
		}

		fmt.Printf("%s dead letter %d re-enqueued as job %d\n", color.GreenString("OK:"), id, jobID)
		return nil
	},
}
