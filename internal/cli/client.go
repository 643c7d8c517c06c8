package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/synthesishq/synthesis-agent/internal/config"
)

// bridgeClient talks to the loopback bridge of a running agent.
type bridgeClient struct {
	baseURL string
	client  *http.Client
}

// newBridgeClient resolves the bridge address from the config file, or
// falls back to the defaults when no config exists, so the client
// commands work out of the box.
func newBridgeClient() *bridgeClient {
	host := config.DefaultBridgeHost
	port := config.DefaultBridgePort

	if cfg, err := config.NewLoader(globalFlags.Config).Load(); err == nil {
		host = cfg.Agent.BridgeHost
		port = cfg.Agent.BridgePort
	}

	return &bridgeClient{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *bridgeClient) post(path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, b.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return b.do(req)
}

func (b *bridgeClient) get(path string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return 0, nil, err
	}
	return b.do(req)
}

func (b *bridgeClient) do(req *http.Request) (int, []byte, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("is the agent running? %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}
