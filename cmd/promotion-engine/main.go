package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"gusto/internal/pkg/bootstrap"
	"gusto/internal/pkg/logger"
	"gusto/internal/pkg/mq"
	"gusto/internal/pkg/redis"
	"gusto/internal/service/promotion/application"
	"gusto/internal/service/promotion/domain"
	"gusto/internal/service/promotion/infrastructure"
	"gusto/internal/service/promotion/interfaces"
	"gusto/internal/zookeeper"
)

const serviceName = "promotion-engine"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	if err := bootstrap.Init(); err != nil {
		panic(err)
	}
	cfg := bootstrap.GetCurrentConfig()
	graceWindow := time.Duration(cfg.App.GraceWindowMinutes) * time.Minute

	// 1. 促销目录（MySQL 为唯一事实来源）
	db, err := infrastructure.OpenMySQL(infrastructure.MySQLConfig{
		Host:     cfg.Infra.MySQL.Host,
		Port:     strconv.Itoa(cfg.Infra.MySQL.Port),
		User:     cfg.Infra.MySQL.User,
		Password: cfg.Infra.MySQL.Password,
		Database: cfg.Infra.MySQL.Database,
	})
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to connect to mysql")
	}
	catalog := infrastructure.NewGormPromotionRepository(db)

	// 2. 核销账本（按配置选择实现）
	var ledger domain.UsageLedger
	switch cfg.App.Ledger {
	case "redis":
		redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		ledger, err = infrastructure.NewRedisUsageLedger(redisClient, graceWindow)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to initialize redis ledger")
		}
	case "mysql":
		zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Addrs, 5*time.Second)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		defer zkConn.Close()
		ledger = infrastructure.NewGormUsageLedger(db, zkConn, graceWindow)
	case "memory":
		ledger = infrastructure.NewMemoryUsageLedger(graceWindow)
	default:
		logger.L().Fatal().Str("ledger", cfg.App.Ledger).Msg("unknown ledger implementation")
	}

	// 3. 核销回执发布（可选）
	var publisher application.RedemptionPublisher
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		writer := mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topic)
		kafkaPublisher := infrastructure.NewRedemptionKafkaPublisher(writer)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	service := application.NewPromotionService(
		catalog,
		ledger,
		domain.SystemClock(),
		otel.Tracer(serviceName),
		publisher,
		application.Options{
			CommitRetries: cfg.App.CommitRetries,
			CommitBackoff: time.Duration(cfg.App.CommitBackoffMS) * time.Millisecond,
		},
	)

	httpHandler := interfaces.NewPromotionHandler(service)
	wsHandler := interfaces.NewOffersHandler(service)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			httpHandler.RegisterRoutes(appCtx.Mux)
			wsHandler.RegisterRoutes(appCtx.Mux)
		},
	})
}
