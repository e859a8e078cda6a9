package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

// MutationEvent notifies queued consumers that a loan's payment set changed.
// Seq is a per-loan monotonic sequence; consumers use it to drop events whose
// recompute has already been covered by a newer one.
type MutationEvent struct {
	LoanID uuid.UUID  `json:"loan_id"`
	Kind   ChangeKind `json:"kind"`
	Seq    int64      `json:"seq"`
}

type MutationBus interface {
	Publish(ctx context.Context, loanID uuid.UUID, kind ChangeKind) (MutationEvent, error)
	Start(ctx context.Context, onEvent func(ev MutationEvent)) error
	Close() error
}

type redisMutationBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	seqKey  string
}

func NewRedisMutationBus(log *logger.Logger) (MutationBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_LEDGER_CHANNEL"))
	if ch == "" {
		ch = "ledger:mutations"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisMutationBus{
		log:     log.With("service", "RedisMutationBus"),
		rdb:     rdb,
		channel: ch,
		seqKey:  "ledger:loan_seq:",
	}, nil
}

// Publish assigns the next per-loan sequence number atomically via INCR and
// broadcasts the event.
func (b *redisMutationBus) Publish(ctx context.Context, loanID uuid.UUID, kind ChangeKind) (MutationEvent, error) {
	if b == nil || b.rdb == nil {
		return MutationEvent{}, fmt.Errorf("mutation bus not initialized")
	}
	seq, err := b.rdb.Incr(ctx, b.seqKey+loanID.String()).Result()
	if err != nil {
		return MutationEvent{}, fmt.Errorf("redis incr: %w", err)
	}
	ev := MutationEvent{LoanID: loanID, Kind: kind, Seq: seq}
	raw, err := json.Marshal(ev)
	if err != nil {
		return MutationEvent{}, err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return MutationEvent{}, fmt.Errorf("redis publish: %w", err)
	}
	return ev, nil
}

func (b *redisMutationBus) Start(ctx context.Context, onEvent func(ev MutationEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("mutation bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev MutationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("dropping undecodable mutation event", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *redisMutationBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
