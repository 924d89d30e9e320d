package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/istominvi/shaurmaniya/internal/checkout"
	"github.com/istominvi/shaurmaniya/internal/config"
	"github.com/istominvi/shaurmaniya/internal/messaging/kafka"
	"github.com/istominvi/shaurmaniya/internal/ordersink"
	"github.com/istominvi/shaurmaniya/internal/repository"
	"github.com/istominvi/shaurmaniya/internal/repository/file"
	"github.com/istominvi/shaurmaniya/internal/repository/memory"
	"github.com/istominvi/shaurmaniya/internal/repository/postgres"
	cartredis "github.com/istominvi/shaurmaniya/internal/repository/redis"
	"github.com/redis/go-redis/v9"
)

type cartStore struct {
	repo  repository.CartRepository
	purge func(ctx context.Context, cutoff time.Time) (int64, error)
	close func()
}

func openCartStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*cartStore, error) {
	noop := func() {}

	switch cfg.CartStore {
	case config.CartStoreFile:
		repo, err := file.NewCartRepository(cfg.CartDir)
		if err != nil {
			return nil, err
		}
		return &cartStore{repo: repo, close: noop}, nil

	case config.CartStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		log.Info("Redis connected", "addr", cfg.RedisAddr)
		return &cartStore{
			repo:  cartredis.NewCartRepository(client, cfg.CartTTL),
			close: func() { client.Close() },
		}, nil

	case config.CartStorePostgres:
		db, err := postgres.InitDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewCartRepository(db)
		return &cartStore{
			repo:  repo,
			purge: repo.PurgeBefore,
			close: func() { db.Close() },
		}, nil

	default:
		return &cartStore{repo: memory.NewCartRepository(), close: noop}, nil
	}
}

type orderSink struct {
	sink  checkout.Sink
	close func()
}

func openOrderSink(cfg *config.Config, log *slog.Logger) (*orderSink, error) {
	switch cfg.OrderSink {
	case config.OrderSinkKafka:
		publisher := kafka.NewPublisher(cfg.KafkaBrokers)
		log.Info("Kafka publisher ready", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderTopic)
		return &orderSink{
			sink: ordersink.NewPublisherSink(publisher, cfg.OrderTopic),
			close: func() {
				if err := publisher.Close(); err != nil {
					log.Error("Failed to close kafka publisher", "err", err)
				}
			},
		}, nil

	case config.OrderSinkHTTP:
		return &orderSink{
			sink: ordersink.NewHTTPSink(ordersink.HTTPConfig{
				URL:              cfg.OrderSinkURL,
				Timeout:          cfg.OrderSinkTimeout,
				Ack:              cfg.RequireAck,
				FailureThreshold: cfg.BreakerThreshold,
				CoolDown:         cfg.BreakerCoolDown,
				Logger:           log,
			}),
			close: func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown order sink %q", cfg.OrderSink)
	}
}
