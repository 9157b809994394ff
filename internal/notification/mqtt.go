package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/logger"
	"github.com/attendsync/attendance-monitor/internal/privacy"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttPublishTimeout = 10 * time.Second
	mqttQoS            = 1
)

// MQTTRecorder receives MQTT publisher metrics.
type MQTTRecorder interface {
	SetConnected(ok bool)
	RecordPublish(seconds float64)
	IncError(stage string)
}

type noopMQTTRecorder struct{}

func (noopMQTTRecorder) SetConnected(bool)     {}
func (noopMQTTRecorder) RecordPublish(float64) {}
func (noopMQTTRecorder) IncError(string)       {}

// MQTTProvider publishes batch and file outcome notifications as JSON to a
// broker topic, for dashboards and integrations.
type MQTTProvider struct {
	settings conf.MQTTSettings
	clientID string
	metrics  MQTTRecorder
	log      logger.Logger

	mu     sync.Mutex
	client mqtt.Client
}

// NewMQTTProvider creates an unconnected provider. clientID should be unique per instance.
func NewMQTTProvider(settings conf.MQTTSettings, clientID string, metrics MQTTRecorder, log logger.Logger) *MQTTProvider {
	if metrics == nil {
		metrics = noopMQTTRecorder{}
	}
	if log == nil {
		log = logger.Global().Module("notification")
	}
	return &MQTTProvider{
		settings: settings,
		clientID: clientID,
		metrics:  metrics,
		log:      log,
	}
}

func (p *MQTTProvider) GetName() string { return "mqtt" }

// Accepts batch and file lifecycle events only.
func (p *MQTTProvider) Accepts(n *Notification) bool {
	event := n.Event()
	return strings.HasPrefix(event, "batch.") || strings.HasPrefix(event, "file.")
}

// ValidateConfig checks the broker URL and topic without connecting.
func (p *MQTTProvider) ValidateConfig() error {
	u, err := url.Parse(p.settings.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", privacy.WrapError(err))
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("broker URL has no host")
	}
	if strings.TrimSpace(p.settings.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}

// Connect establishes the broker connection. paho reconnects on its own afterwards.
func (p *MQTTProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnected() {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.settings.Broker)
	opts.SetClientID(p.clientID)
	opts.SetUsername(p.settings.Username)
	opts.SetPassword(p.settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.metrics.SetConnected(true)
		p.log.Info("connected to MQTT broker", logger.String("broker", privacy.RedactURL(p.settings.Broker)))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.metrics.SetConnected(false)
		p.metrics.IncError("connection_lost")
		p.log.Warn("MQTT connection lost", logger.Error(privacy.WrapError(err)))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	timeout := mqttConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if !token.WaitTimeout(timeout) {
		p.metrics.IncError("connect")
		client.Disconnect(0)
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		p.metrics.IncError("connect")
		return fmt.Errorf("connection error: %w", privacy.WrapError(err))
	}
	p.client = client
	return nil
}

// Send publishes n as JSON.
func (p *MQTTProvider) Send(ctx context.Context, n *Notification) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil || !client.IsConnected() {
		if err := p.Connect(ctx); err != nil {
			return err
		}
		p.mu.Lock()
		client = p.client
		p.mu.Unlock()
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	start := time.Now()
	token := client.Publish(p.settings.Topic, mqttQoS, p.settings.Retain, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		p.metrics.IncError("publish")
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.metrics.IncError("publish")
		return fmt.Errorf("publish failed: %w", err)
	}
	p.metrics.RecordPublish(time.Since(start).Seconds())
	return nil
}

// Close disconnects from the broker.
func (p *MQTTProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		if p.client.IsConnected() {
			p.client.Disconnect(250)
		}
		p.metrics.SetConnected(false)
		p.client = nil
	}
	return nil
}
