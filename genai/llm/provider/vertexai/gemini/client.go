package gemini

import (
	"fmt"
	"net/http"
	"time"

	basecfg "github.com/rin1809/fwexec/genai/llm/provider/base"
)

// Client represents a Gemini API client
type Client struct {
	basecfg.Config
	APIKey  string
	Version string
}

// NewClient creates a new Gemini client with the given API key and model name,
// e.g. "gemini-1.5-flash".
func NewClient(apiKey, model string, options ...ClientOption) *Client {
	client := &Client{
		Config: basecfg.Config{
			HTTPClient: &http.Client{Timeout: 5 * time.Minute},
			Model:      model,
		},
		APIKey: apiKey,
	}
	for _, option := range options {
		option(client)
	}
	if client.Version == "" {
		client.Version = "v1beta"
	}
	if client.BaseURL == "" {
		client.BaseURL = fmt.Sprintf(geminiEndpoint, client.Version)
	}
	return client
}
