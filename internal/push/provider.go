// Package push delivers device notifications through an FCM-compatible
// HTTP endpoint.
package push

import (
	"context"
	"fmt"
	"time"

	"medbridge/pkg/logger"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Provider sends one notification to one device token.
type Provider interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

type fcmMessage struct {
	Message fcmPayload `json:"message"`
}

type fcmPayload struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Name string `json:"name"`
}

type fcmError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FCMProvider posts messages in the FCM HTTP v1 shape.
type FCMProvider struct {
	httpClient *resty.Client
	logger     *logger.Logger
}

func NewFCMProvider(endpoint, serverToken string, timeout time.Duration, log *logger.Logger) *FCMProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if serverToken != "" {
		client.SetAuthToken(serverToken)
	}
	return &FCMProvider{httpClient: client, logger: log.With(zap.String("component", "push"))}
}

func (p *FCMProvider) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	var result fcmResponse
	var failure fcmError

	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(fcmMessage{Message: fcmPayload{
			Token:        token,
			Notification: fcmNotification{Title: title, Body: body},
			Data:         data,
		}}).
		SetResult(&result).
		SetError(&failure).
		Post("")
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push rejected: %s (status %d, %s)", failure.Error.Message, resp.StatusCode(), failure.Error.Status)
	}

	p.logger.Info(ctx, "push delivered", zap.String("message_name", result.Name))
	return nil
}

// LogProvider only logs. Used when no push endpoint is configured.
type LogProvider struct {
	logger *logger.Logger
}

func NewLogProvider(log *logger.Logger) *LogProvider {
	return &LogProvider{logger: log.With(zap.String("component", "push"))}
}

func (p *LogProvider) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	p.logger.Info(ctx, "push skipped, no provider configured",
		zap.String("title", title),
		zap.Int("data_keys", len(data)),
	)
	return nil
}
