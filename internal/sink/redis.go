// Package sink publishes run reports to Redis for fleet collection.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/girste/hardenspec/internal/config"
	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/output"
	"github.com/girste/hardenspec/internal/runner"
	"github.com/girste/hardenspec/internal/util"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// KeyPrefix namespaces the per-host report lists
const KeyPrefix = "hardenspec:reports:"

// Redis pushes reports onto a capped per-host list and announces each run
// on a pub/sub channel.
type Redis struct {
	client  *redis.Client
	keep    int64
	channel string
	logger  *zap.Logger
}

// NewRedis creates a publisher for cfg. It does not connect until Publish.
func NewRedis(cfg config.RedisConfig) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 5 * time.Second,
		}),
		keep:    int64(cfg.Keep),
		channel: cfg.Channel,
		logger:  util.GetLogger(),
	}
}

// ReportKey returns the list key for a host
func ReportKey(hostname string) string {
	if hostname == "" {
		hostname = "unknown"
	}
	return KeyPrefix + hostname
}

// Publish stores the full report and publishes the compact summary
func (r *Redis) Publish(ctx context.Context, report *runner.Report) error {
	full, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	summary, err := json.Marshal(output.ConvertToCompact(report))
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	key := ReportKey(report.Host.Hostname)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, full)
		if r.keep > 0 {
			pipe.LTrim(ctx, key, 0, r.keep-1)
		}
		if r.channel != "" {
			pipe.Publish(ctx, r.channel, summary)
		}
		return nil
	})
	if err != nil {
		return herr.Wrap(herr.ErrTransport, "redis %s: %v", r.client.Options().Addr, err)
	}

	r.logger.Info("Report published",
		zap.String("key", key),
		zap.String("channel", r.channel),
		zap.String("run", report.RunID))
	return nil
}

// Close releases the connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}
