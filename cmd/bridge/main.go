package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benmeehan/switchbot-bridge/internal/constants"
	"github.com/benmeehan/switchbot-bridge/internal/metrics_collectors"
	"github.com/benmeehan/switchbot-bridge/internal/service_registry"
	"github.com/benmeehan/switchbot-bridge/internal/utils"
	"github.com/benmeehan/switchbot-bridge/pkg/file"
	"github.com/benmeehan/switchbot-bridge/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "path to an optional dotenv file")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := utils.LoadEnvFile(*envPath); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load env file")
	}

	fileClient := file.NewFileService()

	// Load configuration from file and environment
	config, err := utils.LoadConfig(*configPath, fileClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger = newLogger(config)
	logger.Info().Str("version", constants.Version).Msg("Starting switchbot bridge")
	logConfig(logger, config)

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient, logger.With().Str("component", "mqtt").Logger())
	err = mqttClient.Initialize(mqtt.Options{
		Broker:        config.MQTT.Broker,
		Port:          config.MQTT.Port,
		ClientID:      config.MQTT.ClientID,
		Username:      config.MQTT.Username,
		Password:      config.MQTT.Password,
		TLS:           config.MQTT.TLS,
		CACertificate: config.MQTT.CACertificate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	metrics := metrics_collectors.NewMetricsRegistry()

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, metrics, mqttClient.HealthCheck, logger)
	chain := serviceRegistry.InitializeMiddlewares(config)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, chain); err != nil {
		mqttClient.Disconnect(constants.MQTTDisconnectQuiesce)
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		mqttClient.Disconnect(constants.MQTTDisconnectQuiesce)
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stopCh

	logger.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Some services failed to stop cleanly")
	}
	mqttClient.Disconnect(constants.MQTTDisconnectQuiesce)
	logger.Info().Msg("Shutdown complete")
}

// newLogger builds the root logger from the logging configuration.
func newLogger(config *utils.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Logging.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if strings.EqualFold(config.Logging.Format, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// logConfig dumps the effective, non-secret configuration at debug level.
func logConfig(logger zerolog.Logger, config *utils.Config) {
	logger.Debug().
		Str("mqtt_broker", config.MQTT.Broker).
		Int("mqtt_port", config.MQTT.Port).
		Str("mqtt_username", config.MQTT.Username).
		Str("mqtt_client_id", config.MQTT.ClientID).
		Bool("mqtt_tls", config.MQTT.TLS).
		Int("mqtt_qos", config.MQTT.QOS).
		Str("smartlock_base_topic", config.Topics.SmartLockBase).
		Str("generic_base_topic", config.Topics.GenericBase).
		Str("webhook_listen_addr", config.Services.Webhook.ListenAddr).
		Str("webhook_path", config.Services.Webhook.Path).
		Str("api_base_url", config.SwitchBot.BaseURL).
		Str("smartlock_device_type", config.SwitchBot.SmartLockDeviceType).
		Strs("valid_device_ids", config.SwitchBot.ValidDeviceIDs).
		Strs("valid_commands", config.SwitchBot.ValidCommands).
		Dur("polling_interval", config.PollingInterval()).
		Msg("Effective configuration")
}
