package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/switchbot-bridge/internal/constants"
	"github.com/benmeehan/switchbot-bridge/internal/metrics_collectors"
	mqtt_middleware "github.com/benmeehan/switchbot-bridge/internal/middlewares/mqtt"
	"github.com/benmeehan/switchbot-bridge/internal/topics"
	"github.com/benmeehan/switchbot-bridge/pkg/identity"
	"github.com/rs/zerolog"
)

// PollerService periodically publishes a "status" command on every allowed device's
// command topic. The router picks those up like any other command, so the poller never
// talks to the vendor API itself.
type PollerService struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Topics       topics.Topics
	QOS          int
	AllowList    identity.AllowListInterface
	MqttClient   mqtt_middleware.Client
	Metrics      *metrics_collectors.MetricsRegistry
	Logger       zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPollerService initializes a new PollerService. An interval of 0 disables polling.
func NewPollerService(interval, startupDelay time.Duration, t topics.Topics, qos int, allowList identity.AllowListInterface,
	mqttClient mqtt_middleware.Client, metrics *metrics_collectors.MetricsRegistry, logger zerolog.Logger) *PollerService {

	return &PollerService{
		Interval:     interval,
		StartupDelay: startupDelay,
		Topics:       t,
		QOS:          qos,
		AllowList:    allowList,
		MqttClient:   mqttClient,
		Metrics:      metrics,
		Logger:       logger.With().Str("component", "poller").Logger(),
	}
}

// Start launches the polling loop in a separate goroutine.
func (p *PollerService) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return fmt.Errorf("poller: %w", ErrAlreadyRunning)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	if p.Interval <= 0 {
		p.Logger.Info().Msg("Status polling disabled")
		return nil
	}
	if p.Topics.SmartLockBase == "" {
		p.Logger.Warn().Msg("Smart-lock base topic is empty, status polling disabled")
		return nil
	}

	ctx := p.ctx
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runPollLoop(ctx)
	}()

	p.Logger.Info().Dur("interval", p.Interval).Dur("startup_delay", p.StartupDelay).Msg("PollerService started successfully")
	return nil
}

// Stop gracefully stops the polling loop.
func (p *PollerService) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return fmt.Errorf("poller: %w", ErrNotRunning)
	}

	p.cancel()
	p.wg.Wait()

	p.ctx = nil
	p.cancel = nil

	p.Logger.Info().Msg("PollerService stopped successfully")
	return nil
}

// runPollLoop waits out the startup delay, polls once, then polls on every tick.
func (p *PollerService) runPollLoop(ctx context.Context) {
	if p.StartupDelay > 0 {
		select {
		case <-time.After(p.StartupDelay):
		case <-ctx.Done():
			return
		}
	}

	p.poll()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-ctx.Done():
			p.Logger.Info().Msg("PollerService stopping gracefully")
			return
		}
	}
}

// poll publishes one status command per allowed device. A failed publish is logged and
// does not stop the round.
func (p *PollerService) poll() {
	p.Metrics.PollTick()

	for _, deviceID := range p.AllowList.DeviceIDs() {
		topic := p.Topics.SmartLockCommand(deviceID)
		if err := p.MqttClient.Publish(topic, byte(p.QOS), false, []byte(constants.CommandStatus)); err != nil {
			p.Logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish status command")
			continue
		}
		p.Logger.Debug().Str("topic", topic).Msg("Status command published")
	}
}
