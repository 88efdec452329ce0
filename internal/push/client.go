package push

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Message is the data-only payload the hosted notify function forwards to a
// user's devices.
type Message struct {
	Type       string            `json:"type"`
	Title      string            `json:"title,omitempty"`
	Body       string            `json:"body,omitempty"`
	EntityID   string            `json:"entityId,omitempty"`
	Priority   string            `json:"priority,omitempty"`
	SenderRole string            `json:"senderRole,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Data       map[string]string `json:"data,omitempty"`
}

type notifyRequest struct {
	UserID  string  `json:"user_id"`
	Message Message `json:"message"`
}

// Client calls the hosted push-delivery function. Delivery is fire-and-forget:
// a failed request is reported to the caller, never retried here.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

func NewClient(endpoint, apiKey string, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if apiKey != "" {
		httpClient.SetAuthToken(apiKey)
	}

	return &Client{http: httpClient, log: log}
}

// Notify requests delivery of msg to every registered device of userID.
func (c *Client) Notify(ctx context.Context, userID string, msg Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(notifyRequest{UserID: userID, Message: msg}).
		Post("/notify")
	if err != nil {
		return fmt.Errorf("push notify request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push notify request: status %d", resp.StatusCode())
	}

	c.log.Debug().Str("user_id", userID).Str("type", msg.Type).Msg("push delivery requested")
	return nil
}
