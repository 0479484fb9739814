package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
)

// RedisPublisher mirrors recorded events onto Redis pub/sub channels so
// off-process consumers can follow campaigns live. Each campaign gets its
// own channel: <prefix>.<campaignID>.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher wraps an existing client. The caller owns the client's
// lifecycle unless Close is used.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "presale.events"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Publish sends the JSON-encoded event to the campaign's channel.
func (p *RedisPublisher) Publish(ctx context.Context, evt event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := p.prefix + "." + evt.CampaignID
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
