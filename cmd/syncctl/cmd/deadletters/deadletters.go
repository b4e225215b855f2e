package deadletters

import "github.com/spf13/cobra"

var DeadLettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "Inspect and replay dead-lettered jobs",
	Long: `Inspect jobs that exhausted their retries or were rejected by a
provider, and replay them back onto the sync queue once the underlying
problem is fixed.`,
}
