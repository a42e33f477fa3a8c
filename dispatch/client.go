// Package dispatch talks to the media platform's agent dispatch API. It
// schedules the conversational agent job that performs the actual dialing.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/telephony"
)

var _ telephony.Dispatcher = (*Client)(nil)

// Client is an HTTP client for the agent dispatch API.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

type dispatchRequest struct {
	AgentName string `json:"agent_name"`
	Room      string `json:"room"`
	Metadata  string `json:"metadata,omitempty"`
}

type dispatchResponse struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	AgentName string `json:"agent_name"`
}

// NewClient builds a dispatch client. apiKey/apiSecret authenticate against
// the platform.
func NewClient(log *zap.Logger, baseURL, apiKey, apiSecret string) *Client {
	httpc := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(apiKey, apiSecret).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpc, log: log}
}

// DispatchAgentJob schedules agentName inside sessionName. metadata is
// serialized to a JSON string, matching what the agent worker unpacks.
func (c *Client) DispatchAgentJob(ctx context.Context, agentName, sessionName string, metadata map[string]string) (string, error) {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encoding dispatch metadata: %w", err)
	}

	var out dispatchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(dispatchRequest{
			AgentName: agentName,
			Room:      sessionName,
			Metadata:  string(meta),
		}).
		SetResult(&out).
		Post("/v1/agent-dispatch")
	if err != nil {
		return "", fmt.Errorf("dispatch request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("dispatch API returned %s: %s", resp.Status(), resp.String())
	}

	c.log.Info("agent job dispatched",
		zap.String("dispatch_id", out.ID),
		zap.String("room", sessionName),
		zap.String("agent", agentName))
	return out.ID, nil
}
