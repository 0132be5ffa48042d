// Package mqtt mirrors hub state to an MQTT broker and turns command topics
// into hub service calls.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/barneyonline/core/internal/hub"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	commandTimeout = 30 * time.Second
)

// Options configures the bridge connection and topic layout.
type Options struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
	QoS             byte
}

// client is the subset of the paho client the bridge uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Bridge publishes entity states and discovery configs, and subscribes to
// command topics.
type Bridge struct {
	hub    *hub.Hub
	opts   Options
	client client
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()

	mu         sync.Mutex
	discovered map[string]bool
}

// NewBridge connects to the broker. Discovery and states are published on
// every (re)connect.
func NewBridge(h *hub.Hub, opts Options, logger *slog.Logger) (*Bridge, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	b := newBridge(h, opts, nil, logger)

	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(b.statusTopic(), statusOffline, opts.QoS, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected", "broker", opts.Broker)
			b.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "error", err)
		})
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	c := pahomqtt.NewClient(clientOpts)
	b.client = c
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

func newBridge(h *hub.Hub, opts Options, c client, logger *slog.Logger) *Bridge {
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "gohome"
	}
	if opts.DiscoveryPrefix == "" {
		opts.DiscoveryPrefix = "homeassistant"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		hub:        h,
		opts:       opts,
		client:     c,
		logger:     logger.With("component", "mqtt"),
		ctx:        ctx,
		cancel:     cancel,
		discovered: make(map[string]bool),
	}
}

// Start follows state changes on the hub bus.
func (b *Bridge) Start() {
	b.unsub = b.hub.Bus.On(hub.EventStateChanged, b.handleStateChanged)
	b.logger.Info("MQTT bridge started", "prefix", b.opts.TopicPrefix)
}

// Stop publishes offline status and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publish(b.statusTopic(), []byte(statusOffline), true)
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) onConnect() {
	b.publish(b.statusTopic(), []byte(statusOnline), true)

	b.mu.Lock()
	clear(b.discovered)
	b.mu.Unlock()
	for _, st := range b.hub.States.All("") {
		b.publishState(st)
	}

	b.subscribe(b.opts.TopicPrefix+"/+/+/set", func(topic string, payload []byte) {
		b.handleSet(topic, payload)
	})
	b.subscribe(b.opts.TopicPrefix+"/service/+/+", func(topic string, payload []byte) {
		b.handleServiceCommand(topic, payload)
	})
}

func (b *Bridge) subscribe(topic string, fn func(topic string, payload []byte)) {
	token := b.client.Subscribe(topic, b.opts.QoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	})
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			b.logger.Warn("MQTT subscribe timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Error("MQTT subscribe failed", "topic", topic, "error", err)
		}
	}()
}

func (b *Bridge) handleStateChanged(event hub.Event) {
	data, ok := event.Data.(hub.StateChangedData)
	if !ok {
		return
	}
	if data.NewState == nil {
		b.removeEntity(data.EntityID)
		return
	}
	b.publishState(*data.NewState)
}

type statePayload struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func (b *Bridge) publishState(st hub.State) {
	b.publishDiscovery(st)

	attrs := st.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	payload, err := json.Marshal(statePayload{State: st.State, Attributes: attrs})
	if err != nil {
		b.logger.Warn("encode state", "entity_id", st.EntityID, "error", err)
		return
	}
	b.publish(b.entityTopic(st.EntityID, "state"), payload, true)
}

func (b *Bridge) publishDiscovery(st hub.State) {
	b.mu.Lock()
	done := b.discovered[st.EntityID]
	b.discovered[st.EntityID] = true
	b.mu.Unlock()
	if done {
		return
	}

	msg, ok := b.buildDiscovery(st)
	if !ok {
		return
	}
	b.publish(msg.Topic, msg.Payload, true)
}

func (b *Bridge) removeEntity(entityID string) {
	b.mu.Lock()
	delete(b.discovered, entityID)
	b.mu.Unlock()

	domain, object := hub.SplitEntityID(entityID)
	b.publish(b.entityTopic(entityID, "state"), []byte{}, true)
	b.publish(fmt.Sprintf("%s/%s/%s/config", b.opts.DiscoveryPrefix, domain, object), []byte{}, true)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, b.opts.QoS, retained, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "error", err)
		}
	}()
}

func (b *Bridge) statusTopic() string {
	return b.opts.TopicPrefix + "/status"
}

// entityTopic returns <prefix>/<domain>/<object_id>/<leaf>.
func (b *Bridge) entityTopic(entityID, leaf string) string {
	domain, object := hub.SplitEntityID(entityID)
	return strings.Join([]string{b.opts.TopicPrefix, domain, object, leaf}, "/")
}
