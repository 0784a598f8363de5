package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler processes one event. Returning an error leaves the event pending
// for a later retry unless it wraps ErrMalformed.
type Handler func(ctx context.Context, e Event) error

// RelayConfig names the consumer group position and the retry policy.
type RelayConfig struct {
	Stream   string
	Group    string
	Consumer string
	// MaxAttempts is the number of deliveries before an event is moved to
	// the dead-letter stream.
	MaxAttempts int
	// ClaimIdle is how long an entry must sit unacked in another consumer's
	// pending list before this consumer takes it over. Zero disables claiming.
	ClaimIdle time.Duration
}

// Relay reads the stream through a consumer group and acks an event only
// after the handler succeeded or the event was dead-lettered.
type Relay struct {
	rdb     *rd.Client
	handler Handler
	logger  *zap.Logger

	stream      string
	deadStream  string
	group       string
	consumer    string
	maxAttempts int64
	claimIdle   time.Duration

	retryDelay time.Duration
	block      time.Duration
}

func NewRelay(rdb *rd.Client, handler Handler, logger *zap.Logger, cfg RelayConfig) *Relay {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Relay{
		rdb:         rdb,
		handler:     handler,
		logger:      logger.Named("relay"),
		stream:      cfg.Stream,
		deadStream:  cfg.Stream + ":dead",
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: int64(cfg.MaxAttempts),
		claimIdle:   cfg.ClaimIdle,
		retryDelay:  500 * time.Millisecond,
		block:       2 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.logger.Error("ensure consumer group", zap.Error(err))
		return
	}
	r.logger.Info("relay started", zap.String("stream", r.stream), zap.String("consumer", r.consumer))

	for ctx.Err() == nil {
		if _, err := r.Poll(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			r.logger.Warn("relay poll", zap.Error(err))
			sleep(ctx, r.retryDelay)
		}
	}
	r.logger.Info("relay stopped")
}

// Poll takes over stale entries from other consumers, retries this
// consumer's pending events and then reads new ones. A failing event does
// not stop the rest of the batch. It returns how many events were acked
// and the joined handler errors.
func (r *Relay) Poll(ctx context.Context) (int, error) {
	if err := r.claimStale(ctx); err != nil {
		return 0, fmt.Errorf("claim stale: %w", err)
	}
	msgs, err := r.readGroup(ctx, "0", -1)
	if err != nil {
		return 0, fmt.Errorf("read pending: %w", err)
	}
	block := r.block
	if len(msgs) > 0 {
		block = -1
	}
	fresh, err := r.readGroup(ctx, ">", block)
	if err != nil {
		return 0, fmt.Errorf("read new: %w", err)
	}
	msgs = append(msgs, fresh...)

	acked := 0
	var errs []error
	for _, xm := range msgs {
		if err := r.processOne(ctx, xm); err != nil {
			if ctx.Err() != nil {
				return acked, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("process %s: %w", xm.ID, err))
			continue
		}
		acked++
	}
	return acked, errors.Join(errs...)
}

// claimStale moves entries idle longer than claimIdle into this consumer's
// pending list, where the next read picks them up.
func (r *Relay) claimStale(ctx context.Context) error {
	if r.claimIdle <= 0 {
		return nil
	}
	_, _, err := r.rdb.XAutoClaim(ctx, &rd.XAutoClaimArgs{
		Stream:   r.stream,
		Group:    r.group,
		Consumer: r.consumer,
		MinIdle:  r.claimIdle,
		Start:    "0-0",
		Count:    16,
	}).Result()
	if errors.Is(err, rd.Nil) {
		return nil
	}
	return err
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, id string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, id},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	e, err := decode(xm.Values)
	if err == nil {
		hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = r.handler(hctx, e)
		cancel()
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformed):
		r.logger.Warn("dropping malformed event", zap.String("id", xm.ID), zap.Error(err))
	default:
		deliveries, cerr := r.deliveries(ctx, xm.ID)
		if cerr != nil {
			return errors.Join(err, cerr)
		}
		if deliveries < r.maxAttempts {
			return err
		}
		r.logger.Error("dead-lettering event", zap.String("id", xm.ID),
			zap.Int64("deliveries", deliveries), zap.Error(err))
		if derr := r.deadLetter(ctx, xm, err); derr != nil {
			return fmt.Errorf("dead-letter: %w", derr)
		}
	}
	return r.ackAndDelete(ctx, xm.ID)
}

// deliveries reads the group's delivery counter for one pending entry.
func (r *Relay) deliveries(ctx context.Context, id string) (int64, error) {
	pending, err := r.rdb.XPendingExt(ctx, &rd.XPendingExtArgs{
		Stream: r.stream,
		Group:  r.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return pending[0].RetryCount, nil
}

func (r *Relay) deadLetter(ctx context.Context, xm rd.XMessage, cause error) error {
	values := make(map[string]interface{}, len(xm.Values)+2)
	for k, v := range xm.Values {
		values[k] = v
	}
	values["source_id"] = xm.ID
	values["error"] = cause.Error()
	return r.rdb.XAdd(ctx, &rd.XAddArgs{Stream: r.deadStream, Values: values}).Err()
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
