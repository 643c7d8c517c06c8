package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// statusCmd shows the session state and recent captures.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session state and recent captures",
	RunE:  runStatus,
}

var statusFlags struct {
	Limit int
}

func init() {
	statusCmd.Flags().IntVar(&statusFlags.Limit, "limit", 10, "Number of recent captures to show")
	RootCmd.AddCommand(statusCmd)
}

type sessionResponse struct {
	SignedIn  bool   `json:"signed_in"`
	ExpiresAt string `json:"expires_at"`
}

type capturesResponse struct {
	Captures []struct {
		ID         string  `json:"ID"`
		SourceApp  *string `json:"SourceApp"`
		SourceURL  *string `json:"SourceURL"`
		UploadedAt string  `json:"UploadedAt"`
	} `json:"captures"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newBridgeClient()

	status, sessionBody, err := client.get("/v1/session")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("session query failed: %s", string(sessionBody))
	}

	capturesPath := fmt.Sprintf("/v1/captures?limit=%d", statusFlags.Limit)
	status, capturesBody, err := client.get(capturesPath)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("captures query failed: %s", string(capturesBody))
	}

	if globalFlags.JSON {
		fmt.Printf("{\"session\":%s,\"captures\":%s}\n", sessionBody, capturesBody)
		return nil
	}

	var session sessionResponse
	if err := json.Unmarshal(sessionBody, &session); err != nil {
		return err
	}
	if session.SignedIn {
		fmt.Println("Session: signed in")
		if session.ExpiresAt != "" {
			fmt.Println("Token expires:", session.ExpiresAt)
		}
	} else {
		fmt.Println("Session: signed out")
	}

	var captures capturesResponse
	if err := json.Unmarshal(capturesBody, &captures); err != nil {
		return err
	}
	if len(captures.Captures) == 0 {
		fmt.Println("No captures recorded.")
		return nil
	}

	fmt.Printf("Recent captures (%d):\n", len(captures.Captures))
	for _, c := range captures.Captures {
		app := "-"
		if c.SourceApp != nil {
			app = *c.SourceApp
		}
		url := "-"
		if c.SourceURL != nil {
			url = *c.SourceURL
		}
		fmt.Printf("  %s  app=%s  url=%s  at=%s\n", c.ID, app, url, c.UploadedAt)
	}
	return nil
}
