package service_registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benmeehan/switchbot-bridge/internal/constants"
	"github.com/benmeehan/switchbot-bridge/internal/metrics_collectors"
	mqtt_middleware "github.com/benmeehan/switchbot-bridge/internal/middlewares/mqtt"
	"github.com/benmeehan/switchbot-bridge/internal/registry"
	"github.com/benmeehan/switchbot-bridge/internal/services"
	"github.com/benmeehan/switchbot-bridge/internal/topics"
	"github.com/benmeehan/switchbot-bridge/internal/utils"
	"github.com/benmeehan/switchbot-bridge/pkg/encryption"
	"github.com/benmeehan/switchbot-bridge/pkg/identity"
	"github.com/benmeehan/switchbot-bridge/pkg/mqtt"
	"github.com/benmeehan/switchbot-bridge/pkg/switchbot"
	"github.com/rs/zerolog"
)

// ServiceRegistry manages the lifecycle of the bridge services.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	metrics     *metrics_collectors.MetricsRegistry
	health      func() error
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// health backs the webhook listener's /healthz route and may be nil.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, metrics *metrics_collectors.MetricsRegistry, health func() error,
	logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		mqttClient: mqttClient,
		metrics:    metrics,
		health:     health,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Services returns the registered service names in start order.
func (sr *ServiceRegistry) Services() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds the vendor client and registers the enabled services.
// The router comes first so the poller's first status commands find a subscriber.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, chain mqtt_middleware.Client) error {
	signer, err := encryption.NewSigner(config.SwitchBot.Token, config.SwitchBot.Secret)
	if err != nil {
		return err
	}

	vendor := switchbot.NewClient(
		config.SwitchBot.BaseURL,
		signer,
		&http.Client{Timeout: constants.VendorRequestTimeout},
		sr.Logger,
	)
	allowList := identity.NewAllowList(
		config.SwitchBot.ValidDeviceIDs,
		config.SwitchBot.ValidCommands,
		config.SwitchBot.SmartLockDeviceType,
	)
	t := topics.New(config.Topics.SmartLockBase, config.Topics.GenericBase)

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "router",
			enabled: config.Services.Router.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewRouterService(
					t,
					config.MQTT.QOS,
					config.Services.Router.Workers,
					config.Services.Router.QueueSize,
					allowList,
					vendor,
					chain,
					sr.metrics,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "webhook",
			enabled: config.Services.Webhook.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewWebhookService(
					config.Services.Webhook.ListenAddr,
					config.Services.Webhook.Path,
					t,
					config.MQTT.QOS,
					allowList,
					chain,
					sr.metrics,
					sr.health,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "poller",
			enabled: config.PollingInterval() > 0,
			constructor: func() (registry.Service, error) {
				return services.NewPollerService(
					config.PollingInterval(),
					constants.PollerStartupDelay,
					t,
					config.MQTT.QOS,
					allowList,
					chain,
					sr.metrics,
					sr.Logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if !svc.enabled {
			sr.Logger.Debug().Str("service", svc.name).Msg("Service is disabled, skipping")
			continue
		}
		serviceInstance, err := svc.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
			return err
		}
		sr.RegisterService(svc.name, serviceInstance)
		registeredServices = append(registeredServices, svc.name)
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
