// cmd/syncctl/cmd/init.go
package cmd

import (
	"crmsync/cmd/syncctl/cmd/connections"
	"crmsync/cmd/syncctl/cmd/deadletters"
)

func init() {
	rootCmd.AddCommand(connections.ConnectionsCmd)
	connections.ConnectionsCmd.AddCommand(connections.ListCmd)
	connections.ConnectionsCmd.AddCommand(connections.DisconnectCmd)

	rootCmd.AddCommand(deadletters.DeadLettersCmd)
	deadletters.DeadLettersCmd.AddCommand(deadletters.ListCmd)
	deadletters.DeadLettersCmd.AddCommand(deadletters.RetryCmd)
}
