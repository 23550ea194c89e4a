package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/config"
)

var ErrTimeout = errors.New("mqtt operation timed out")

type service struct {
	client paho_mqtt.Client
	prefix string
	logger *zap.Logger

	mu         sync.Mutex
	registered map[string]struct{}
}

func New(client paho_mqtt.Client, prefix string) *service {
	if prefix == "" {
		prefix = "homeassistant"
	}
	return &service{
		client:     client,
		prefix:     prefix,
		logger:     zap.L(),
		registered: map[string]struct{}{},
	}
}

// NewClient builds a paho client for the configured broker. Host may be given
// with or without a scheme; tcp:// is assumed when absent.
func NewClient(cfg *config.MqttConfig, clientID string) paho_mqtt.Client {
	broker := cfg.Host
	if !hasScheme(broker) {
		broker = fmt.Sprintf("tcp://%s", broker)
	}
	opts := paho_mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	return paho_mqtt.NewClient(opts)
}

func hasScheme(host string) bool {
	return strings.Contains(host, "://")
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(time.Second * 5)
	if res {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}

func (s *service) Disconnect() {
	s.client.Disconnect(250)
}
