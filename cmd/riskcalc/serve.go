package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"max.com/riskcalc/pkg/alert"
	"max.com/riskcalc/pkg/api"
	"max.com/riskcalc/pkg/config"
	"max.com/riskcalc/pkg/kafka"
	"max.com/riskcalc/pkg/logger"
	"max.com/riskcalc/pkg/marketdata"
	"max.com/riskcalc/pkg/metrics"
	natsx "max.com/riskcalc/pkg/nats"
	"max.com/riskcalc/pkg/report"
	"max.com/riskcalc/pkg/risk"
	"max.com/riskcalc/pkg/service"
)

// serve 按配置装配依赖并启动服务
// 没配置的外部组件 (MySQL/Redis/Kafka/NATS) 直接跳过
func serve(cfg *config.Config) error {
	log := logger.Component("main")
	var closers []func() error

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("close failed", "error", err)
			}
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	deps := service.Deps{Metrics: m}

	// 1. MySQL
	var db *gorm.DB
	if cfg.Database.DSN != "" {
		var err error
		db, err = openDB(cfg.Database)
		if err != nil {
			return err
		}
		sqlDB, _ := db.DB()
		closers = append(closers, sqlDB.Close)
	}

	// 2. Redis
	var rds *redis.Client
	if cfg.Redis.Addr != "" {
		rds = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rds.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, rds.Close)
	}

	// 3. 仓库: 行情 (MySQL 或内存，可选 Redis 缓存)、报告、限额
	var series marketdata.Repository = marketdata.NewMemoryRepository()
	if db != nil {
		mr := marketdata.NewMySQLRepository(db)
		rr := report.NewMySQLRepository(db)
		if cfg.Database.AutoMigrate {
			if err := mr.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate market data: %w", err)
			}
			if err := rr.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate reports: %w", err)
			}
		}
		series = mr
		deps.Reports = rr
	}
	if rds != nil {
		series = marketdata.NewCachedRepository(series, rds)
	}
	deps.Series = series

	cooldown := time.Duration(cfg.Risk.AlertCooldown) * time.Second
	if rds != nil {
		deps.Limits = alert.NewRedisLimitManager(rds, cooldown)
	} else {
		deps.Limits = alert.NewMemoryLimitManager(cooldown)
	}

	// 数据文件预加载到默认 pair
	if err := preload(cfg, series, log); err != nil {
		log.Warn("preload market data skipped", "path", cfg.Risk.DataFile, "error", err)
	}

	// 4. Kafka 生产者
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ReportTopic != "" {
		producer, err := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.Kafka.Brokers))
		if err != nil {
			return err
		}
		closers = append(closers, producer.Close)
		deps.Events = producer
	}

	// 5. NATS 发布者
	var conn *nats.Conn
	if cfg.NATS.URL != "" {
		var err error
		conn, err = natsx.Connect(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			return err
		}
		// Drain 处理完在途消息后关闭连接
		closers = append(closers, conn.Drain)
		deps.Alerts = natsx.NewPublisher(conn)
	}

	svc := service.NewRiskService(risk.NewEngine(), deps, service.Options{
		ReportTopic:  cfg.Kafka.ReportTopic,
		AlertSubject: cfg.NATS.AlertSubject,
		DefaultPair:  cfg.Risk.DefaultPair,
		SeriesLimit:  cfg.Risk.SeriesLimit,
	})

	g, ctx := errgroup.WithContext(context.Background())

	// 6. NATS 请求应答
	if conn != nil && cfg.NATS.EvaluateSubject != "" {
		sub := natsx.NewSubscriber(conn, svc.HandleNATS, 5*time.Second)
		if err := sub.SubscribeQueue(cfg.NATS.EvaluateSubject, cfg.NATS.Queue); err != nil {
			return err
		}
		closers = append(closers, sub.Close)
		log.Info("nats subscriber started", "subject", cfg.NATS.EvaluateSubject, "queue", cfg.NATS.Queue)
	}

	// 7. Kafka 批量请求
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.RequestTopic != "" {
		consumer, err := kafka.NewConsumer(
			kafka.DefaultConsumerConfig(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.RequestTopic}),
			svc.HandleKafka,
		)
		if err != nil {
			return err
		}
		consumer.Start()
		closers = append(closers, consumer.Stop)
		log.Info("kafka consumer started", "topic", cfg.Kafka.RequestTopic, "group", cfg.Kafka.GroupID)
	}

	// 8. HTTP
	router := api.NewRouter(api.NewRiskHandler(svc, m, reg))
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 9. 优雅关闭
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		select {
		case <-quit:
			log.Info("shutting down...")
		case <-ctx.Done():
			log.Info("context cancelled, shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openDB(c config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gorm_mysql.Open(c.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetime) * time.Second)
	return db, nil
}

func preload(cfg *config.Config, repo marketdata.Repository, log *slog.Logger) error {
	if cfg.Risk.DataFile == "" || cfg.Risk.DefaultPair == "" {
		return nil
	}
	s, err := marketdata.LoadFile(cfg.Risk.DataFile)
	if err != nil {
		return err
	}
	s.Pair = cfg.Risk.DefaultPair

	done := logger.LogDuration(context.Background(), log, "preload market data", "pair", s.Pair, "observations", s.Len())
	defer done()
	return repo.Save(context.Background(), s)
}
