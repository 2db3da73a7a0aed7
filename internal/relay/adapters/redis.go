package adapters

import (
	"context"
	"encoding/json"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/agentstation/pushcenter/internal/relay/fanout"
	"github.com/agentstation/pushcenter/pkg/errors"
)

// Publisher is the subset of the redis client used by RedisSink.
// *redis.Client and *redis.ClusterClient satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes envelopes as JSON to a redis pub/sub channel. Events
// with an entity type are also published to "<channel>.<entityType>".
type RedisSink struct {
	client  Publisher
	channel string
}

// NewRedisSink creates a sink publishing to channel.
func NewRedisSink(client Publisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Name implements fanout.Sink.
func (s *RedisSink) Name() string { return "redis" }

// Channels returns the channels env is published to.
func (s *RedisSink) Channels(env fanout.Envelope) []string {
	if env.EntityType == "" {
		return []string{s.channel}
	}
	return []string{s.channel, s.channel + "." + env.EntityType}
}

// Send publishes env to every channel it belongs to.
func (s *RedisSink) Send(ctx context.Context, env fanout.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.NewProtocolError("encode envelope", err)
	}

	for _, ch := range s.Channels(env) {
		if err := s.client.Publish(ctx, ch, data).Err(); err != nil {
			return errors.NewTransportError("publish", ch, err)
		}
	}
	return nil
}

// Close closes the underlying client when it supports closing.
func (s *RedisSink) Close() error {
	if c, ok := s.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
