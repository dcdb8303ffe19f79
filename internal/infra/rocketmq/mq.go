package rocketmq

import (
	"context"
	"strings"
	"sync"
	"time"

	"coinflip-server/common/logger"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	"go.uber.org/zap"
)

// Publisher is a minimal facade for sending messages.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
}

// Options carries the producer settings from config.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Topics    []string
}

var (
	mu      sync.RWMutex
	enabled bool
	prod    rmq.Producer
	pub     Publisher = stubPublisher{}
)

// Enabled reports whether a producer has been started.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// PublisherInstance returns the active publisher (stub if disabled).
func PublisherInstance() Publisher {
	mu.RLock()
	defer mu.RUnlock()
	return pub
}

type rmqPublisher struct{ p rmq.Producer }

func (r *rmqPublisher) Publish(ctx context.Context, topic, key string, body []byte) error {
	msg := &rmq.Message{Topic: topic, Body: body}
	if key != "" {
		msg.SetKeys(key)
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.p.Send(c, msg)
	return err
}

// stubPublisher is used when MQ is disabled; it refuses so the outbox keeps rows pending.
type stubPublisher struct{}

func (stubPublisher) Publish(_ context.Context, topic, _ string, _ []byte) error {
	logger.Debug("mq disabled, message kept in outbox", zap.String("topic", topic))
	return ErrDisabled
}

// Init starts a producer. An empty endpoint or missing credentials leave MQ disabled.
func Init(opts Options) {
	rmq.ResetLogger()

	endpoint := strings.TrimSpace(opts.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	if endpoint == "" {
		logger.Info("rocketmq disabled: no endpoint")
		return
	}
	// the SDK panics while signing without credentials
	if strings.TrimSpace(opts.AccessKey) == "" || strings.TrimSpace(opts.SecretKey) == "" {
		logger.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return
	}

	cfg := &rmq.Config{
		Endpoint:    endpoint,
		Credentials: &credentials.SessionCredentials{AccessKey: opts.AccessKey, AccessSecret: opts.SecretKey},
	}
	var popts []rmq.ProducerOption
	if len(opts.Topics) > 0 {
		popts = append(popts, rmq.WithTopics(opts.Topics...))
	}
	p, err := rmq.NewProducer(cfg, popts...)
	if err != nil {
		logger.Error("rocketmq: producer init failed", zap.Error(err))
		return
	}

	startDone := make(chan error, 1)
	go func() { startDone <- p.Start() }()

	select {
	case err := <-startDone:
		if err != nil {
			logger.Warn("rocketmq: producer start failed, publishing disabled", zap.Error(err))
			return
		}
	case <-time.After(2 * time.Second):
		logger.Warn("rocketmq: producer start timeout, publishing disabled")
		return
	}

	mu.Lock()
	prod = p
	pub = &rmqPublisher{p: p}
	enabled = true
	mu.Unlock()
	logger.Info("rocketmq enabled", zap.String("endpoint", endpoint), zap.Strings("topics", opts.Topics))
}

// Shutdown stops the producer if one is running.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if prod != nil {
		if err := prod.GracefulStop(); err != nil {
			logger.Warn("rocketmq: graceful stop failed", zap.Error(err))
		}
		prod = nil
	}
	enabled = false
	pub = stubPublisher{}
}
