package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultChannel = "live:changes"

// RedisBridge fans changes out to every API instance over Redis pub/sub.
// Each instance refreshes its own Hub when the message comes back.
type RedisBridge struct {
	Rdb     *redis.Client
	Hub     *Hub
	Channel string
}

func (b *RedisBridge) channel() string {
	if b.Channel != "" {
		return b.Channel
	}
	return defaultChannel
}

// Publish sends ch to all instances. If Redis is unreachable the local hub is
// refreshed directly so this instance's subscribers still see the write.
func (b *RedisBridge) Publish(ctx context.Context, ch Change) {
	payload, err := json.Marshal(ch)
	if err == nil {
		err = b.Rdb.Publish(ctx, b.channel(), payload).Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("entity", ch.Entity).Msg("live: redis publish failed, refreshing local feeds only")
		b.Hub.Publish(ctx, ch)
	}
}

// Start subscribes to the change channel and returns once the subscription is
// confirmed. Messages are applied to the hub until ctx is done.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.Rdb.Subscribe(ctx, b.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}
	go b.loop(ctx, sub)
	return nil
}

func (b *RedisBridge) loop(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ch Change
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
				log.Warn().Err(err).Msg("live: dropping malformed change message")
				continue
			}
			b.Hub.Publish(ctx, ch)
		}
	}
}
