package cli

import (
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "picmigrate",
	Short: "PicMigrate - Bling product photo migration",
	Long: `PicMigrate moves product photos between two Bling ERP accounts.

It authorizes both accounts via OAuth, finds every image attached to a
product and its variants by SKU, downloads them locally and re-attaches
them to the matching product in the destination account.

Usage:
  picmigrate [command] [flags]

Available Commands:
  serve      Start the HTTP server (OAuth callbacks and batch API)
  migrate    Run a migration batch from the command line
  accounts   Show account authorization status
  reset      Forget stored credentials for all accounts

Use "picmigrate [command] --help" for more information about a command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Secrets commonly live in .env during local runs; missing file is fine.
		_ = godotenv.Load()
		return nil
	},
}

var globalFlags GlobalFlags

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("PICMIGRATE_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of PicMigrate",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func printVersion() {
	info := GetVersionInfo()
	println("PicMigrate Version:", info.Version)
	println("Go Version:", info.GoVersion)
	println("OS/Arch:", info.OS+"/"+info.Arch)
}
