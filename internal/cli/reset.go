package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget stored credentials for all accounts",
	Long: `Delete every stored credential file. Both accounts will need to go
through the OAuth consent flow again before the next migration.`,
	RunE: runReset,
}

func init() {
	RootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	application, err := buildApp(globalFlags.Config)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.tokens.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	fmt.Println("Stored credentials removed.")
	return nil
}
