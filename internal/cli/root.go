package cli

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "synthesis-agent",
	Short: "Synthesis Agent - screen capture with source attribution",
	Long: `Synthesis Agent maintains a signed-in session against the Synthesis
identity provider and captures user-selected screen regions, attributing
each capture to the application window and browser URL it came from.

The agent runs as a background process exposing a loopback bridge; the
other commands talk to that running agent.

Use "synthesis-agent [command] --help" for more information about a command.`,
}

var (
	globalFlags GlobalFlags
	initOnce    sync.Once
)

// InitRoot initializes the root command with global flags
func InitRoot() {
	initOnce.Do(initRoot)
}

func initRoot() {
	configPath := os.Getenv("SYNTHESIS_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	dbPath := os.Getenv("SYNTHESIS_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/synthesis.db"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", dbPath, "Path to SQLite database")
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
	Short: "Print the version number of the agent",
	Run: func(cmd *cobra.Command, args []string) {
		info := GetVersionInfo()
		fmt.Println("Synthesis Agent Version:", info.Version)
		fmt.Println("Go Version:", info.GoVersion)
		fmt.Println("OS/Arch:", info.OS+"/"+info.Arch)
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
