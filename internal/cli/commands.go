package cli

import (
	"fmt"
	"os"
)

// Execute runs the root command with the given arguments
func Execute(args []string) error {
	RootCmd.SetArgs(args)

	if err := RootCmd.Execute(); err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}
	return nil
}

// ExecuteWithErrorCode runs the root command and returns exit code
func ExecuteWithErrorCode(args []string) int {
	RootCmd.SetArgs(args)

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
