package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Events mirror the hosted backend's change feed: one pub/sub channel per
// table, JSON frames describing row changes.

const channelPrefix = "feed:"

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

type Event struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	Record json.RawMessage `json:"record"`
}

// Handler receives decoded events in publish order. It must not block for
// long; slow handlers delay every later event on the same subscription.
type Handler func(ctx context.Context, ev Event)

type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishInsert emits a row-insert event for the given table.
func (p *Publisher) PublishInsert(ctx context.Context, table string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal feed record: %w", err)
	}

	frame, err := json.Marshal(Event{Table: table, Type: EventInsert, Record: raw})
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}

	if err := p.rdb.Publish(ctx, channelPrefix+table, frame).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

type Subscriber struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewSubscriber(rdb *redis.Client, log zerolog.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, log: log}
}

// Subscribe consumes one table's feed until the context is cancelled.
// Malformed frames are logged and skipped; the subscription survives them.
func (s *Subscriber) Subscribe(ctx context.Context, table string, handler Handler) error {
	sub := s.rdb.Subscribe(ctx, channelPrefix+table)
	defer func() {
		_ = sub.Close()
	}()

	// Force the SUBSCRIBE round trip so a broken connection fails fast.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", table, err)
	}

	ch := sub.Channel()
	s.log.Info().Str("table", table).Msg("realtime subscription open")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("table", table).Msg("realtime subscription closed")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warn().Err(err).Str("table", table).Msg("skipping malformed feed frame")
				continue
			}
			handler(ctx, ev)
		}
	}
}
