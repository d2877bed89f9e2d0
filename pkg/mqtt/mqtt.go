package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/switchbot-bridge/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("mqtt: not connected")
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultKeepAlive      = 60 * time.Second
	maxReconnectInterval  = 2 * time.Minute
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options holds the broker connection settings.
type Options struct {
	Broker        string
	Port          int
	ClientID      string
	Username      string
	Password      string
	TLS           bool
	CACertificate string // optional PEM bundle, system roots are used when empty
}

// BrokerURL returns the paho broker URL, ssl:// when TLS is enabled.
func (o Options) BrokerURL() string {
	scheme := "tcp"
	if o.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Broker, o.Port)
}

type subscription struct {
	qos      byte
	callback mqtt.MessageHandler
}

// MqttService provides methods for MQTT operations.
// Subscriptions made through it are restored whenever the connection is re-established.
type MqttService struct {
	client        MQTTClient
	fileClient    file.FileOperations
	logger        zerolog.Logger
	subscriptions cmap.ConcurrentMap[string, subscription]
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations, logger zerolog.Logger) *MqttService {
	return &MqttService{
		fileClient:    fileClient,
		logger:        logger,
		subscriptions: cmap.New[subscription](),
	}
}

// Initialize builds the paho client from opts and connects to the broker.
func (s *MqttService) Initialize(opts Options) error {
	clientOpts, err := s.clientOptions(opts)
	if err != nil {
		return err
	}

	s.client = mqtt.NewClient(clientOpts)

	token := s.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	s.logger.Info().Str("broker", opts.BrokerURL()).Str("client_id", opts.ClientID).Msg("Connected to MQTT broker")
	return nil
}

// clientOptions translates Options into paho client options.
func (s *MqttService) clientOptions(opts Options) (*mqtt.ClientOptions, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL())
	clientOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetMaxReconnectInterval(maxReconnectInterval)
	clientOpts.SetConnectTimeout(defaultConnectTimeout)
	clientOpts.SetKeepAlive(defaultKeepAlive)

	if opts.TLS {
		tlsConfig, err := s.tlsConfig(opts.CACertificate)
		if err != nil {
			return nil, err
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}

	clientOpts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.restoreSubscriptions()
	})
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("MQTT connection lost, reconnecting")
	})

	return clientOpts, nil
}

// tlsConfig returns a TLS configuration trusting caCertPath, or the system roots when empty.
func (s *MqttService) tlsConfig(caCertPath string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caCertPath == "" {
		return tlsConfig, nil
	}

	caCert, err := s.fileClient.ReadFileRaw(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to append CA certificate")
	}
	tlsConfig.RootCAs = caCertPool
	return tlsConfig, nil
}

// restoreSubscriptions re-subscribes every tracked topic after a (re)connect.
func (s *MqttService) restoreSubscriptions() {
	for item := range s.subscriptions.IterBuffered() {
		token := s.client.Subscribe(item.Key, item.Val.qos, item.Val.callback)
		go func(topic string, token mqtt.Token) {
			token.Wait()
			if err := token.Error(); err != nil {
				s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to restore subscription")
				return
			}
			s.logger.Debug().Str("topic", topic).Msg("Subscription restored")
		}(item.Key, token)
	}
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler and tracks it for reconnects.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	s.subscriptions.Set(topic, subscription{qos: qos, callback: callback})
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	for _, topic := range topics {
		s.subscriptions.Remove(topic)
	}
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	if s.client == nil {
		return
	}
	s.client.Disconnect(quiesce)
}

// IsConnected reports whether the underlying client currently holds a broker connection.
func (s *MqttService) IsConnected() bool {
	c, ok := s.client.(mqtt.Client)
	return ok && c.IsConnectionOpen()
}

// HealthCheck returns ErrNotConnected when the broker connection is down.
func (s *MqttService) HealthCheck() error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Subscriptions returns the topics currently tracked for restoration.
func (s *MqttService) Subscriptions() []string {
	return s.subscriptions.Keys()
}
