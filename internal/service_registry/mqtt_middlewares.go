package service_registry

import (
	"github.com/benmeehan/switchbot-bridge/internal/constants"
	mqtt_middleware "github.com/benmeehan/switchbot-bridge/internal/middlewares/mqtt"
	"github.com/benmeehan/switchbot-bridge/internal/utils"
)

// InitializeMiddlewares sets up the middleware chain based on configuration.
func (sr *ServiceRegistry) InitializeMiddlewares(config *utils.Config) *mqtt_middleware.ChainedMQTTClient {
	var middlewares []mqtt_middleware.MQTTMiddleware

	// Ordered middleware definitions
	middlewaresInOrder := []struct {
		name        string
		enabled     bool
		constructor func() mqtt_middleware.MQTTMiddleware
	}{
		{
			name:    constants.LOGGING_MIDDLEWARE,
			enabled: config.Middlewares.Logging.Enabled,
			constructor: func() mqtt_middleware.MQTTMiddleware {
				return mqtt_middleware.NewLoggingMiddleware(sr.Logger.With().Str("component", "mqtt").Logger())
			},
		},
		{
			name:    constants.METRICS_MIDDLEWARE,
			enabled: config.Middlewares.Metrics.Enabled,
			constructor: func() mqtt_middleware.MQTTMiddleware {
				return mqtt_middleware.NewMetricsMiddleware(sr.metrics)
			},
		},
	}

	for _, mw := range middlewaresInOrder {
		if !mw.enabled {
			sr.Logger.Debug().Str("middleware", mw.name).Msg("Middleware is disabled, skipping")
			continue
		}
		middlewares = append(middlewares, mw.constructor())
		sr.Logger.Info().Str("middleware", mw.name).Msg("Middleware initialized")
	}

	chainedClient := mqtt_middleware.NewChainedMQTTClient(sr.mqttClient, middlewares)
	sr.Logger.Info().Int("middleware_count", len(middlewares)).Msg("Middleware chain initialized")
	return chainedClient
}
