package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/config"
	"coinflip-server/internal/controller/api"
	infmysql "coinflip-server/internal/infra/mysql"
	infrds "coinflip-server/internal/infra/redis"
	infmq "coinflip-server/internal/infra/rocketmq"
	"coinflip-server/internal/model"
	"coinflip-server/internal/randomness"
	"coinflip-server/internal/service"
	"coinflip-server/internal/worker"
	"coinflip-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	logger.InitLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 配置
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 2. 数据库
	db, err := infmysql.Open(ctx, infmysql.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		logger.Fatalf("open database failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := model.Migrate(ctx, db); err != nil {
			logger.Fatalf("migrate failed", zap.Error(err))
		}
	}

	// 3. Redis / RocketMQ（均可选）
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := infrds.Ping(ctx, 2*time.Second); err != nil {
		logger.Warn("redis ping failed, continuing in degraded mode", zap.Error(err))
	}
	infmq.Init(infmq.Options{
		Endpoint:  cfg.RocketMQ.Endpoint,
		AccessKey: cfg.RocketMQ.AccessKey,
		SecretKey: cfg.RocketMQ.SecretKey,
		Topics:    cfg.RocketMQ.Topics,
	})

	// 4. 服务与路由
	oracle, source := newOracle(cfg)
	engine := service.New(db, oracle)
	api.Bind(engine, engine, engine)
	api.SetReadinessChecks(
		api.ReadinessCheck{Name: "database", Check: db.PingContext},
		api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return infrds.Ping(ctx, time.Second) }},
	)
	routers.Register()
	serveMetrics(cfg)

	// 5. 后台任务
	var wg sync.WaitGroup
	startWorkers(ctx, &wg, cfg, db, engine, source)

	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		if newCfg.Server.LogLevel != "" && (oldCfg == nil || oldCfg.Server.LogLevel != newCfg.Server.LogLevel) {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if srv := beego.BeeApp.Server; srv != nil {
			_ = srv.Shutdown(c)
		}
	}()

	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}
	logger.Info("coinflip-server listening", zap.Int("port", beego.BConfig.Listen.HTTPPort))
	beego.Run()

	stop()
	wg.Wait()
	infmq.Shutdown()
	_ = infrds.Close()
	_ = db.Close()
}

// newOracle 有 Redis 时使用 Redis 随机数服务，否则退回进程内实现
func newOracle(cfg *config.Config) (randomness.Oracle, randomness.Source) {
	if c := infrds.Client(); c != nil {
		r := randomness.NewRedis(c, time.Duration(cfg.Randomness.ValueTTLSec)*time.Second)
		return r, r
	}
	logger.Warn("redis not configured, using in-process randomness oracle")
	m := randomness.NewMemory()
	return m, m
}

func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, db *sqlx.DB, engine *service.Engine, src randomness.Source) {
	w := cfg.Workers
	if w.Outbox {
		if infmq.Enabled() {
			worker.StartOutboxDispatcher(ctx, wg, db, infmq.PublisherInstance(), time.Second)
		} else {
			logger.Info("outbox dispatcher skipped: rocketmq disabled")
		}
	}
	if w.Fulfiller {
		worker.StartFulfiller(ctx, wg, src, serverSeed(cfg), 0)
	}
	if w.AutoSettle {
		worker.StartAutoSettler(ctx, wg, engine, time.Duration(w.SettleIntervalMS)*time.Millisecond)
	}
	if w.AutoRefund {
		worker.StartAutoRefunder(ctx, wg, engine, time.Duration(w.RefundIntervalSec)*time.Second)
	}
}

// serverSeed 未配置时生成进程级随机种子（重启后不可复现）
func serverSeed(cfg *config.Config) []byte {
	if s := cfg.Randomness.ServerSeed; s != "" {
		return []byte(s)
	}
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		logger.Fatalf("generate server seed failed", zap.Error(err))
	}
	logger.Warn("randomness.server_seed not set, using an ephemeral seed")
	return seed
}

// serveMetrics 暴露 Prometheus 指标；配置独立地址时单独监听
func serveMetrics(cfg *config.Config) {
	if !cfg.Observability.EnableProm {
		return
	}
	if cfg.Observability.PromAddr == "" {
		beego.Handler("/metrics", promhttp.Handler())
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		srv := &http.Server{Addr: cfg.Observability.PromAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", cfg.Observability.PromAddr))
}
