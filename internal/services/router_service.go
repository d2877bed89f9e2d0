package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/benmeehan/switchbot-bridge/internal/constants"
	"github.com/benmeehan/switchbot-bridge/internal/metrics_collectors"
	mqtt_middleware "github.com/benmeehan/switchbot-bridge/internal/middlewares/mqtt"
	"github.com/benmeehan/switchbot-bridge/internal/models"
	"github.com/benmeehan/switchbot-bridge/internal/topics"
	"github.com/benmeehan/switchbot-bridge/internal/utils"
	"github.com/benmeehan/switchbot-bridge/pkg/identity"
	"github.com/benmeehan/switchbot-bridge/pkg/switchbot"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	familySmartLock = "smartlock"
	familyGeneric   = "generic"
)

const genericCommandSchema = `{
	"type": "object",
	"required": ["method", "service"],
	"properties": {
		"method":  {"enum": ["get", "post"]},
		"service": {"type": "string", "minLength": 1}
	}
}`

var genericCommandValidator = jsonschema.MustCompileString("generic-command.json", genericCommandSchema)

// RouterService subscribes to the command topics and turns every message into one signed
// vendor call. Successful (HTTP 200) responses are published back to the bus.
type RouterService struct {
	// Configuration Fields
	topics    topics.Topics
	qos       int
	workers   int
	queueSize int

	// Dependencies
	allowList  identity.AllowListInterface
	vendor     switchbot.VendorClient
	mqttClient mqtt_middleware.Client
	metrics    *metrics_collectors.MetricsRegistry
	logger     zerolog.Logger

	// Internal state management
	mu         sync.RWMutex
	pool       *utils.WorkerPool
	subscribed []string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewRouterService initializes a new RouterService.
func NewRouterService(t topics.Topics, qos, workers, queueSize int, allowList identity.AllowListInterface,
	vendor switchbot.VendorClient, mqttClient mqtt_middleware.Client, metrics *metrics_collectors.MetricsRegistry,
	logger zerolog.Logger) *RouterService {
	if workers < 1 {
		workers = constants.DefaultRouterWorkers
	}
	if queueSize < 0 {
		queueSize = constants.DefaultRouterQueueSize
	}

	return &RouterService{
		topics:     t,
		qos:        qos,
		workers:    workers,
		queueSize:  queueSize,
		allowList:  allowList,
		vendor:     vendor,
		mqttClient: mqttClient,
		metrics:    metrics,
		logger:     logger.With().Str("component", "router").Logger(),
	}
}

// Start subscribes to the enabled command topic families.
func (rs *RouterService) Start() error {
	rs.mu.Lock()
	if rs.pool != nil {
		rs.mu.Unlock()
		return fmt.Errorf("router: %w", ErrAlreadyRunning)
	}
	rs.ctx, rs.cancel = context.WithCancel(context.Background())
	rs.pool = utils.NewWorkerPool(rs.workers, rs.queueSize)
	rs.mu.Unlock()

	var filters []string
	if rs.topics.SmartLockBase != "" {
		filters = append(filters, rs.topics.SmartLockCommandFilter())
	}
	if rs.topics.GenericBase != "" {
		filters = append(filters, rs.topics.GenericCommand())
	}
	if len(filters) == 0 {
		rs.logger.Warn().Msg("Both base topics are empty, router has nothing to subscribe to")
	}

	// The lock is not held while subscribing: paho may deliver a message on its
	// own goroutine before Subscribe returns.
	var subscribed []string
	for _, filter := range filters {
		if err := rs.mqttClient.Subscribe(filter, byte(rs.qos), rs.HandleMessage); err != nil {
			rs.logger.Error().Err(err).Str("topic", filter).Msg("Failed to subscribe to command topic")
			rs.shutdown(subscribed)
			return fmt.Errorf("router: subscribe %s: %w", filter, err)
		}
		subscribed = append(subscribed, filter)
	}

	rs.mu.Lock()
	rs.subscribed = subscribed
	rs.mu.Unlock()

	rs.logger.Info().Strs("topics", subscribed).Int("workers", rs.workers).Msg("RouterService started successfully")
	return nil
}

// Stop unsubscribes, lets in-flight dispatches finish and releases the worker pool.
func (rs *RouterService) Stop() error {
	rs.mu.Lock()
	if rs.pool == nil {
		rs.mu.Unlock()
		return fmt.Errorf("router: %w", ErrNotRunning)
	}
	subscribed := rs.subscribed
	rs.subscribed = nil
	rs.mu.Unlock()

	rs.shutdown(subscribed)
	rs.logger.Info().Msg("RouterService stopped successfully")
	return nil
}

// shutdown unsubscribes the given filters, then drains the pool and cancels the service context.
func (rs *RouterService) shutdown(subscribed []string) {
	if len(subscribed) > 0 {
		if err := rs.mqttClient.Unsubscribe(subscribed...); err != nil {
			rs.logger.Warn().Err(err).Strs("topics", subscribed).Msg("Failed to unsubscribe command topics")
		}
	}

	rs.mu.Lock()
	pool, cancel := rs.pool, rs.cancel
	rs.pool, rs.ctx, rs.cancel = nil, nil, nil
	rs.mu.Unlock()

	if pool == nil {
		return
	}
	pool.Shutdown()
	cancel()
}

// HandleMessage is the MQTT callback. Each message is dispatched on the worker pool so a
// slow vendor call never holds up the client's delivery goroutine. When every worker is
// busy and the queue is full the message is dropped rather than blocking delivery.
func (rs *RouterService) HandleMessage(_ MQTT.Client, msg MQTT.Message) {
	topic := msg.Topic()
	payload := append([]byte(nil), msg.Payload()...)

	rs.mu.RLock()
	pool, ctx := rs.pool, rs.ctx
	rs.mu.RUnlock()

	if pool == nil {
		rs.logger.Warn().Str("topic", topic).Msg("Router is not running, dropping message")
		return
	}

	err := pool.TrySubmit(func() {
		_ = rs.Route(ctx, topic, payload)
	})
	switch {
	case errors.Is(err, utils.ErrPoolFull):
		family := familyGeneric
		if rs.topics.IsSmartLock(topic) {
			family = familySmartLock
		}
		rs.metrics.Message(family, metrics_collectors.ResultDropped)
		rs.logger.Warn().Str("topic", topic).Msg("Router queue is full, dropping message")
	case err != nil:
		rs.logger.Warn().Err(err).Str("topic", topic).Msg("Router is stopping, dropping message")
	}
}

// Route processes one command message synchronously. The returned error describes why
// nothing was published; it has already been logged and counted.
func (rs *RouterService) Route(ctx context.Context, topic string, payload []byte) (err error) {
	family := familyGeneric
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while routing %s: %v", topic, r)
		}
		rs.record(family, topic, err)
	}()

	rs.logger.Info().Str("topic", topic).Msg("Command received")

	switch {
	case rs.topics.GenericBase != "" && topic == rs.topics.GenericCommand():
		return rs.routeGeneric(ctx, payload)
	case rs.topics.IsSmartLock(topic):
		family = familySmartLock
		return rs.routeSmartLock(ctx, topic, payload)
	case rs.topics.IsGeneric(topic):
		return rs.routeGeneric(ctx, payload)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
}

func (rs *RouterService) record(family, topic string, err error) {
	switch {
	case err == nil:
		rs.metrics.Message(family, metrics_collectors.ResultPublished)
	case isValidationError(err):
		rs.metrics.Message(family, metrics_collectors.ResultRejected)
		rs.logger.Warn().Err(err).Str("topic", topic).Msg("Command rejected")
	case errors.Is(err, ErrPublishFailed):
		rs.metrics.Message(family, metrics_collectors.ResultFailed)
		rs.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish vendor response")
	default:
		rs.metrics.Message(family, metrics_collectors.ResultDropped)
		rs.logger.Error().Err(err).Str("topic", topic).Msg("Command failed, nothing published")
	}
}

// routeSmartLock handles {smartlock-base}{device-id}/cmnd.
func (rs *RouterService) routeSmartLock(ctx context.Context, topic string, payload []byte) error {
	deviceID, ok := rs.topics.DeviceIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("%w: no device id in %s", ErrInvalidTopic, topic)
	}
	if !rs.allowList.IsValidDevice(deviceID) {
		return &DeviceError{DeviceID: deviceID}
	}

	command := strings.ToLower(strings.TrimSpace(string(payload)))
	if !rs.allowList.IsValidCommand(command) {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	rs.logger.Debug().Str("device_id", deviceID).Str("command", command).Msg("Dispatching smart-lock command")

	var (
		resp   *switchbot.Response
		err    error
		method = http.MethodPost
	)
	if command == constants.CommandStatus {
		method = http.MethodGet
		resp, err = rs.vendor.Get(ctx, "devices/"+deviceID+"/status")
	} else {
		body, marshalErr := json.Marshal(models.LockCommandRequest{
			Command:     command,
			CommandType: constants.CommandTypeCommand,
		})
		if marshalErr != nil {
			return marshalErr
		}
		resp, err = rs.vendor.Post(ctx, "devices/"+deviceID+"/commands", body)
	}

	return rs.publishResponse(method, resp, err, rs.topics.ResponseTopicFor(topic))
}

// routeGeneric handles {generic-base}cmnd carrying {"method", "service", "payload"}.
func (rs *RouterService) routeGeneric(ctx context.Context, payload []byte) error {
	cmd, err := decodeGenericCommand(payload)
	if err != nil {
		return err
	}

	rs.logger.Debug().Str("method", cmd.Method).Str("service", cmd.Service).Msg("Dispatching generic command")

	var resp *switchbot.Response
	method := http.MethodGet
	switch cmd.Method {
	case constants.MethodGet:
		resp, err = rs.vendor.Get(ctx, cmd.Service)
	case constants.MethodPost:
		method = http.MethodPost
		resp, err = rs.vendor.Post(ctx, cmd.Service, cmd.body())
	}

	return rs.publishResponse(method, resp, err, rs.topics.GenericResponse())
}

type genericCommand struct {
	models.GenericCommand
}

// body returns the POST body, nil when the payload was absent or null.
func (c genericCommand) body() []byte {
	if len(c.Payload) == 0 || string(c.Payload) == "null" {
		return nil
	}
	return c.Payload
}

// decodeGenericCommand validates the payload shape before decoding it.
// Anything that does not match exactly is ErrInvalidPayload.
func decodeGenericCommand(payload []byte) (genericCommand, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return genericCommand{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := genericCommandValidator.Validate(doc); err != nil {
		return genericCommand{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var cmd genericCommand
	if err := json.Unmarshal(payload, &cmd.GenericCommand); err != nil {
		return genericCommand{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return cmd, nil
}

// publishResponse republishes a vendor response body when, and only when, the call
// returned HTTP 200 with a JSON body.
func (rs *RouterService) publishResponse(method string, resp *switchbot.Response, callErr error, topic string) error {
	if callErr != nil {
		rs.metrics.VendorRequest(method, metrics_collectors.OutcomeTransport)
		return callErr
	}
	if !resp.OK() {
		rs.metrics.VendorRequest(method, metrics_collectors.OutcomeNon200)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	rs.metrics.VendorRequest(method, metrics_collectors.OutcomeOK)

	if !json.Valid(resp.Body) {
		return ErrInvalidResponse
	}

	if err := rs.mqttClient.Publish(topic, byte(rs.qos), false, resp.Body); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	rs.logger.Info().Str("topic", topic).Msg("Vendor response published")
	return nil
}
