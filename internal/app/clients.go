package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/events"
	"github.com/yungbote/proofstake-backend/internal/platform/llm"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type Clients struct {
	Redis     *goredis.Client
	LLM       *llm.Client
	Publisher events.Publisher
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var rdb *goredis.Client
	opts := []llm.Option{llm.WithMetrics(metrics)}
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: addr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unreachable; llm key rotation stays process-local", "addr", addr, "error", err)
		}
		opts = append(opts, llm.WithRotation(llm.NewRedisRotation(rdb, "")))
	}

	// LLM
	client, err := llm.New(cfg.LLM(), log, opts...)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}

	// Events
	pub, err := events.NewAMQPPublisher(cfg.RabbitMQURI, log)
	if err != nil {
		closeRedis(rdb)
		return Clients{}, fmt.Errorf("init event publisher: %w", err)
	}

	return Clients{Redis: rdb, LLM: client, Publisher: pub}, nil
}

func (c Clients) Close() {
	if c.Publisher != nil {
		_ = c.Publisher.Close()
	}
	closeRedis(c.Redis)
}

func closeRedis(rdb *goredis.Client) {
	if rdb != nil {
		_ = rdb.Close()
	}
}
