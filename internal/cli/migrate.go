package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/picmigrate/picmigrate/internal/models"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate [sku...]",
	Short: "Run a migration batch from the command line",
	Long: `Run a migration batch without going through the HTTP API.

SKUs are taken from the arguments, from --skus-file (one SKU per line), or
from stdin when neither is given. Both accounts must already be
authorized; run "picmigrate serve" and visit /oauth/authorize/<account>
first.

Example:
  picmigrate migrate SKU-001 SKU-002
  picmigrate migrate --skus-file skus.txt
  cat skus.txt | picmigrate migrate`,
	RunE: runMigrate,
}

var migrateFlags struct {
	File string
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFlags.File, "skus-file", "", "Path to a file with one SKU per line")

	RootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	skus, err := collectSKUs(args)
	if err != nil {
		return err
	}
	if len(skus) == 0 {
		return fmt.Errorf("no SKUs provided")
	}

	application, err := buildApp(globalFlags.Config)
	if err != nil {
		return err
	}
	defer application.Close()

	// Ctrl-C stops the batch between SKUs; results so far are kept.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := application.orchestrator
	originToken, err := application.authorizer.CurrentToken(ctx, orch.OriginName())
	if err != nil {
		return fmt.Errorf("origin account %q is not authenticated: %w", orch.OriginName(), err)
	}
	destToken, err := application.authorizer.CurrentToken(ctx, orch.DestinationName())
	if err != nil {
		return fmt.Errorf("destination account %q is not authenticated: %w", orch.DestinationName(), err)
	}

	progress := func(index, total int, result models.SKUResult) {
		if globalFlags.JSON {
			return
		}
		line := fmt.Sprintf("[%d/%d] %s: %s", index+1, total, result.SKU, result.Outcome)
		if result.Error != "" {
			line += " (" + result.Error + ")"
		}
		fmt.Println(line)
	}

	batch, runErr := orch.RunBatch(ctx, skus, originToken, destToken, progress)

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batch); err != nil {
			return err
		}
	} else {
		fmt.Printf("\nBatch %s: %d/%d succeeded\n", batch.ID, batch.Succeeded, batch.Total)
	}

	if runErr != nil {
		return fmt.Errorf("batch interrupted: %w", runErr)
	}
	if batch.Succeeded < batch.Total {
		return fmt.Errorf("%d of %d SKUs did not migrate", batch.Total-batch.Succeeded, batch.Total)
	}
	return nil
}

func collectSKUs(args []string) ([]string, error) {
	var raw []string
	switch {
	case len(args) > 0:
		raw = args
	case migrateFlags.File != "":
		data, err := os.ReadFile(migrateFlags.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read SKU file: %w", err)
		}
		raw = strings.Split(string(data), "\n")
	default:
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			raw = append(raw, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	skus := make([]string, 0, len(raw))
	for _, sku := range raw {
		if sku = strings.TrimSpace(sku); sku != "" {
			skus = append(skus, sku)
		}
	}
	return skus, nil
}
