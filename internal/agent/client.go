// Package agent talks to the external AI triage agent.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medbridge/pkg/logger"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Request is the intake payload the agent expects.
type Request struct {
	Message        string `json:"message"`
	Age            int    `json:"age,omitempty"`
	ConversationID string `json:"conversationId"`
}

// Reply is the agent's answer to one intake message. Speciality and
// IsFinal are set once the agent has reached a classification.
type Reply struct {
	Response   string `json:"response"`
	Speciality string `json:"speciality,omitempty"`
	IsFinal    bool   `json:"isFinal"`
}

type Client struct {
	httpClient *resty.Client
	logger     *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, logger: log.With(zap.String("component", "ai_agent"))}
}

// Ask forwards one intake message and returns the agent's reply.
func (c *Client) Ask(ctx context.Context, req Request) (Reply, error) {
	var reply Reply
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&reply).
		Post("")
	if err != nil {
		c.logger.Error(ctx, "AI agent call failed", zap.Error(err), zap.String("conversation_id", req.ConversationID))
		return Reply{}, fmt.Errorf("failed to call AI agent: %w", err)
	}
	if resp.IsError() {
		c.logger.Error(ctx, "AI agent returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("conversation_id", req.ConversationID),
		)
		return Reply{}, fmt.Errorf("AI agent error: status %d", resp.StatusCode())
	}
	if strings.TrimSpace(reply.Response) == "" {
		return Reply{}, fmt.Errorf("AI agent returned an empty response")
	}
	return reply, nil
}
