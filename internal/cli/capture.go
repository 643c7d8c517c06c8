package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// captureCmd triggers a capture on the running agent.
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Trigger a screen capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, body, err := newBridgeClient().post("/v1/capture", nil)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusAccepted:
			var resp struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return err
			}
			fmt.Println("Capture started:", resp.ID)
			return nil
		case http.StatusConflict:
			return fmt.Errorf("a capture is already in progress")
		default:
			return fmt.Errorf("capture failed: %s", string(body))
		}
	},
}

func init() {
	RootCmd.AddCommand(captureCmd)
}
