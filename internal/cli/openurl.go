package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// openURLCmd forwards a deep link to the running agent. The OS invokes
// this when the custom URL scheme launches a second instance.
var openURLCmd = &cobra.Command{
	Use:   "open-url <url>",
	Short: "Forward a deep link to the running agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, body, err := newBridgeClient().post("/v1/deeplink", map[string]string{"url": args[0]})
		if err != nil {
			return err
		}
		if status != http.StatusNoContent {
			return fmt.Errorf("agent rejected deep link: %s", string(body))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(openURLCmd)
}
