package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/benmeehan/switchbot-bridge/internal/constants"
	"github.com/benmeehan/switchbot-bridge/internal/metrics_collectors"
	mqtt_middleware "github.com/benmeehan/switchbot-bridge/internal/middlewares/mqtt"
	"github.com/benmeehan/switchbot-bridge/internal/models"
	"github.com/benmeehan/switchbot-bridge/internal/topics"
	"github.com/benmeehan/switchbot-bridge/pkg/identity"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookService receives SwitchBot webhook deliveries over HTTP and republishes
// accepted smart-lock events to {smartlock-base}{device-id}/event.
// The same listener serves /healthz and /metrics.
type WebhookService struct {
	listenAddr string
	path       string
	topics     topics.Topics
	qos        int

	allowList  identity.AllowListInterface
	mqttClient mqtt_middleware.Client
	metrics    *metrics_collectors.MetricsRegistry
	health     func() error
	logger     zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewWebhookService initializes a new WebhookService. health may be nil.
func NewWebhookService(listenAddr, path string, t topics.Topics, qos int, allowList identity.AllowListInterface,
	mqttClient mqtt_middleware.Client, metrics *metrics_collectors.MetricsRegistry, health func() error,
	logger zerolog.Logger) *WebhookService {
	if path == "" {
		path = constants.DefaultWebhookPath
	}
	return &WebhookService{
		listenAddr: listenAddr,
		path:       path,
		topics:     t,
		qos:        qos,
		allowList:  allowList,
		mqttClient: mqttClient,
		metrics:    metrics,
		health:     health,
		logger:     logger.With().Str("component", "webhook").Logger(),
	}
}

// Start binds the listener and serves in the background. Bind errors are returned.
func (ws *WebhookService) Start() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.server != nil {
		return fmt.Errorf("webhook: %w", ErrAlreadyRunning)
	}

	ln, err := net.Listen("tcp", ws.listenAddr)
	if err != nil {
		return fmt.Errorf("webhook: listen on %s: %w", ws.listenAddr, err)
	}

	ws.listener = ln
	ws.server = &http.Server{
		Handler:           ws.Handler(),
		ReadHeaderTimeout: constants.WebhookReadHeaderTimeout,
	}

	server := ws.server
	ws.wg.Add(1)
	go func() {
		defer ws.wg.Done()
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ws.logger.Error().Err(err).Msg("Webhook listener stopped unexpectedly")
		}
	}()

	ws.logger.Info().Str("addr", ln.Addr().String()).Str("path", ws.path).Msg("WebhookService started successfully")
	return nil
}

// Stop shuts the listener down, waiting up to constants.WebhookShutdownTimeout for
// in-flight requests.
func (ws *WebhookService) Stop() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.server == nil {
		return fmt.Errorf("webhook: %w", ErrNotRunning)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.WebhookShutdownTimeout)
	defer cancel()

	err := ws.server.Shutdown(ctx)
	ws.wg.Wait()
	ws.server = nil
	ws.listener = nil

	if err != nil {
		return fmt.Errorf("webhook: shutdown: %w", err)
	}
	ws.logger.Info().Msg("WebhookService stopped successfully")
	return nil
}

// Addr returns the bound listener address, or "" when not running.
func (ws *WebhookService) Addr() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.listener == nil {
		return ""
	}
	return ws.listener.Addr().String()
}

// Handler builds the HTTP routes served by the listener.
func (ws *WebhookService) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post(ws.path, ws.handleEvent)
	r.Get("/healthz", ws.handleHealth)
	r.Method(http.MethodGet, "/metrics", ws.metrics.Handler())
	return r
}

func (ws *WebhookService) handleEvent(w http.ResponseWriter, r *http.Request) {
	logger := ws.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		ws.metrics.WebhookEvent(metrics_collectors.ResultRejected)
		logger.Warn().Err(err).Msg("Failed to read webhook body")
		writeJSON(w, http.StatusBadRequest, models.ErrorReply{Error: "Invalid payload"})
		return
	}

	topic, err := ws.Translate(body)
	if err != nil {
		ws.metrics.WebhookEvent(metrics_collectors.ResultRejected)
		logger.Warn().Err(err).Msg("Webhook event rejected")
		writeJSON(w, http.StatusBadRequest, models.ErrorReply{Error: rejectionMessage(err)})
		return
	}

	if err := ws.mqttClient.Publish(topic, byte(ws.qos), false, body); err != nil {
		ws.metrics.WebhookEvent(metrics_collectors.ResultFailed)
		logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish webhook event")
		writeJSON(w, http.StatusInternalServerError, models.ErrorReply{Error: "Failed to publish event"})
		return
	}

	ws.metrics.WebhookEvent(metrics_collectors.ResultPublished)
	logger.Info().Str("topic", topic).Msg("Webhook event published")
	writeJSON(w, http.StatusOK, models.StatusReply{Status: "ok"})
}

func (ws *WebhookService) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if ws.health != nil {
		if err := ws.health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, models.ErrorReply{Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, models.StatusReply{Status: "ok"})
}

// Translate validates a webhook body and returns the topic it must be published to.
// Checks run in order: event type, context, device type, device id, allow-list.
func (ws *WebhookService) Translate(body []byte) (string, error) {
	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if event.EventType != constants.EventTypeChangeReport {
		return "", fmt.Errorf("%w: event type %q", ErrInvalidEvent, event.EventType)
	}
	if event.Context == nil {
		return "", fmt.Errorf("%w: missing context", ErrInvalidEvent)
	}
	if !ws.allowList.IsSmartLockType(event.Context.DeviceType) {
		return "", fmt.Errorf("%w: device type %q", ErrInvalidEvent, event.Context.DeviceType)
	}
	if event.Context.DeviceMac == "" {
		return "", fmt.Errorf("%w: missing device id", ErrInvalidEvent)
	}
	if !ws.allowList.IsValidDevice(event.Context.DeviceMac) {
		return "", &DeviceError{DeviceID: event.Context.DeviceMac}
	}
	if ws.topics.SmartLockBase == "" {
		return "", fmt.Errorf("%w: smart-lock base topic is disabled", ErrInvalidTopic)
	}

	return ws.topics.SmartLockEvent(event.Context.DeviceMac), nil
}

// rejectionMessage maps a Translate error to the client-visible error text.
func rejectionMessage(err error) string {
	var deviceErr *DeviceError
	if errors.As(err, &deviceErr) {
		return "Invalid deviceid " + deviceErr.DeviceID
	}
	return "Invalid payload"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
