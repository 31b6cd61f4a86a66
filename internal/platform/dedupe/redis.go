package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/studygenius/billing/pkg/config"
)

// State is what a delivery found when it tried to claim its event.
type State int

const (
	// Acquired: this delivery owns the event and must Complete or Release it.
	Acquired State = iota
	// InFlight: another delivery is applying the event right now.
	InFlight
	// Done: the event was already applied.
	Done
)

const (
	keyPrefix     = "billing:webhook:event:"
	valueInFlight = "in_flight"
	valueDone     = "done"
	// claims expire so a crashed worker cannot hold an event forever
	inFlightTTL = time.Minute
)

// Store tracks webhook event ids in redis. A nil *Store is valid and lets
// every delivery through.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

func key(eventID string) string { return keyPrefix + eventID }

// New connects to cfg.Redis.Addr. It returns nil when redis is not
// configured or unreachable at startup; dedupe is then off.
func New(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) *Store {
	if cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("webhook dedupe disabled: redis unreachable", "addr", cfg.Redis.Addr, "error", err.Error())
		_ = rdb.Close()
		return nil
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return rdb.Close() }})
	return NewStore(rdb, cfg.Redis.EventTTL, log)
}

func NewStore(rdb *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *Store {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl, log: log}
}

// Claim marks the event in flight unless it is already known.
func (s *Store) Claim(ctx context.Context, eventID string) (State, error) {
	if s == nil || eventID == "" {
		return Acquired, nil
	}
	ok, err := s.rdb.SetNX(ctx, key(eventID), valueInFlight, inFlightTTL).Result()
	if err != nil {
		return Acquired, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	if ok {
		return Acquired, nil
	}
	v, err := s.rdb.Get(ctx, key(eventID)).Result()
	if errors.Is(err, redis.Nil) {
		// the claim expired between the two calls; the caller may retry
		return InFlight, nil
	}
	if err != nil {
		return Acquired, fmt.Errorf("read event %s: %w", eventID, err)
	}
	if v == valueDone {
		return Done, nil
	}
	return InFlight, nil
}

// Complete records the event as applied for the configured TTL.
func (s *Store) Complete(ctx context.Context, eventID string) {
	if s == nil || eventID == "" {
		return
	}
	if err := s.rdb.Set(context.WithoutCancel(ctx), key(eventID), valueDone, s.ttl).Err(); err != nil {
		s.log.Warnw("webhook_dedupe_complete_failed", "event_id", eventID, "error", err.Error())
	}
}

// Release drops an in-flight claim so a redelivery can try again.
func (s *Store) Release(ctx context.Context, eventID string) {
	if s == nil || eventID == "" {
		return
	}
	if err := s.rdb.Del(context.WithoutCancel(ctx), key(eventID)).Err(); err != nil {
		s.log.Warnw("webhook_dedupe_release_failed", "event_id", eventID, "error", err.Error())
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
