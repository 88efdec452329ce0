package push

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/sehatkor/care-gateway/internal/notify"
)

// Presenter renders dispatcher side effects as data-only push messages the
// client runtime executes: a visible notification, a tone, or a vibration.
type Presenter struct {
	client *Client
}

func NewPresenter(client *Client) *Presenter {
	return &Presenter{client: client}
}

func (p *Presenter) Show(ctx context.Context, userID string, n notify.Notification) error {
	data := map[string]string{
		"url":        n.Route,
		"importance": string(n.Importance),
		"persistent": strconv.FormatBool(n.Persistent),
	}
	if n.DismissAfter > 0 {
		data["dismissAfterMs"] = strconv.FormatInt(n.DismissAfter.Milliseconds(), 10)
	}
	if len(n.Vibration) > 0 {
		data["vibration"] = joinInts(n.Vibration)
	}
	if len(n.Tone) > 0 {
		if tone, err := json.Marshal(n.Tone); err == nil {
			data["tone"] = string(tone)
		}
	}

	return p.client.Notify(ctx, userID, Message{
		Type:  "display",
		Title: n.Title,
		Body:  n.Body,
		Data:  data,
	})
}

func (p *Presenter) PlayTone(ctx context.Context, userID string, tone []notify.Note) error {
	raw, err := json.Marshal(tone)
	if err != nil {
		return err
	}
	return p.client.Notify(ctx, userID, Message{
		Type: "tone",
		Data: map[string]string{"tone": string(raw)},
	})
}

func (p *Presenter) Vibrate(ctx context.Context, userID string, pattern []int) error {
	return p.client.Notify(ctx, userID, Message{
		Type: "vibrate",
		Data: map[string]string{"vibration": joinInts(pattern)},
	})
}

func joinInts(values []int) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(v)
	}
	return out
}
