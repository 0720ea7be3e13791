package sender

import (
	"context"
	"fmt"
	"strings"

	"smartfan/internal/config"
	"smartfan/internal/logger"
)

// New creates the sink selected by cfg.Type. host identifies this machine in
// topics, keys and message keys.
func New(ctx context.Context, cfg config.SenderConfig, host string) (Sender, error) {
	kind := strings.ToLower(cfg.Type)
	if kind == "" {
		kind = config.SenderNone
	}

	logger.WithComponent("sender-factory").Info().
		Str("sender_type", kind).
		Msg("Creating sender")

	switch kind {
	case config.SenderNone:
		return Discard{}, nil
	case config.SenderFile:
		return NewFileSender(cfg.File)
	case config.SenderMQTT:
		return NewMQTTSender(cfg.MQTT, host)
	case config.SenderRedis:
		return NewRedisSender(ctx, cfg.Redis, cfg.SOCKSProxy, host)
	case config.SenderKafka:
		return NewKafkaSender(cfg.Kafka, cfg.SOCKSProxy, host)
	default:
		return nil, fmt.Errorf("unknown sender type: %s (supported: none, file, mqtt, redis, kafka)", cfg.Type)
	}
}
