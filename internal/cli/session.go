package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// signinCmd asks the running agent to start the browser sign-in flow.
var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in through the system browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, body, err := newBridgeClient().post("/v1/signin", nil)
		if err != nil {
			return err
		}
		if status != http.StatusNoContent {
			return fmt.Errorf("sign-in failed: %s", string(body))
		}
		fmt.Println("Browser opened. Complete the sign-in there.")
		return nil
	},
}

// signoutCmd revokes and clears the current session.
var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, body, err := newBridgeClient().post("/v1/signout", nil)
		if err != nil {
			return err
		}
		if status != http.StatusNoContent {
			return fmt.Errorf("sign-out failed: %s", string(body))
		}
		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(signinCmd)
	RootCmd.AddCommand(signoutCmd)
}
