package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Show account authorization status",
	Long: `Show the authorization status of every configured Bling account
and the URL to visit for any account that still needs consent.`,
	RunE: runAccounts,
}

func init() {
	RootCmd.AddCommand(accountsCmd)
}

func runAccounts(cmd *cobra.Command, args []string) error {
	application, err := buildApp(globalFlags.Config)
	if err != nil {
		return err
	}
	defer application.Close()

	type row struct {
		Name   string `json:"name"`
		Role   string `json:"role"`
		Status string `json:"status"`
		URL    string `json:"authorize_url,omitempty"`
	}

	var rows []row
	for _, acc := range application.authorizer.Accounts() {
		r := row{
			Name:   acc.Name,
			Role:   string(acc.Role),
			Status: string(application.authorizer.Status(acc.Name)),
		}
		if r.Status != "authenticated" {
			if url, err := application.authorizer.AuthorizationURL(acc.Name); err == nil {
				r.URL = url
			}
		}
		rows = append(rows, r)
	}

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	for _, r := range rows {
		fmt.Printf("%-20s %-12s %s\n", r.Name, r.Role, r.Status)
		if r.URL != "" {
			fmt.Printf("  authorize: %s\n", r.URL)
		}
	}
	return nil
}
