// Package events publishes domain events to a Redis stream and relays them
// to a handler through a consumer group.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "portal:events"
	DefaultGroup  = "portal-mailer"

	DefaultMaxAttempts = 5
	DefaultClaimIdle   = time.Minute

	streamMaxLen = 10000
)

// Event types.
const (
	KYBDecided          = "kyb.decided"
	OrderShipped        = "order.shipped"
	WithdrawalCompleted = "withdrawal.completed"
	InvoiceCreated      = "invoice.created"
	TeamInvited         = "team.invited"
)

// ErrMalformed marks an event that can never be handled. The relay acks and
// drops such events.
var ErrMalformed = errors.New("malformed event")

// Event is a notification-worthy fact. To is the recipient email.
type Event struct {
	Type       string            `json:"type"`
	To         string            `json:"to"`
	Data       map[string]string `json:"data"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// RedisPublisher appends events to a capped stream.
type RedisPublisher struct {
	rdb    *rd.Client
	stream string
}

func NewRedisPublisher(rdb *rd.Client, stream string) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{rdb: rdb, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	err = p.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":        e.Type,
			"to":          e.To,
			"data":        string(data),
			"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func decode(values map[string]interface{}) (Event, error) {
	typ, err := field(values, "type")
	if err != nil {
		return Event{}, err
	}
	to, err := field(values, "to")
	if err != nil {
		return Event{}, err
	}
	raw, err := field(values, "data")
	if err != nil {
		return Event{}, err
	}
	e := Event{Type: typ, To: to}
	if err := json.Unmarshal([]byte(raw), &e.Data); err != nil {
		return Event{}, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	if ts, err := field(values, "occurred_at"); err == nil {
		e.OccurredAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if e.Type == "" || e.To == "" {
		return Event{}, fmt.Errorf("%w: missing type or recipient", ErrMalformed)
	}
	return e, nil
}

func field(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %s", ErrMalformed, key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("%w: unsupported field type %s: %T", ErrMalformed, key, v)
	}
}
