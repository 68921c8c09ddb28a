package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/metrics"
	"tank_edge/internal/source"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos              = 1
	retryInterval    = 5 * time.Second
	disconnectQuiesce = 250 // ms
)

// Listener subscribes to the node's command topic and forwards every
// non-empty payload to the device.
type Listener struct {
	broker   string
	clientID string
	topic    string
	sink     source.CommandWriter
	log      *logger.Logger
}

func NewListener(broker, clientID, topic string, sink source.CommandWriter, log *logger.Logger) *Listener {
	if clientID == "" {
		clientID = fmt.Sprintf("tank-edge-%d", time.Now().UnixNano())
	}
	return &Listener{broker: broker, clientID: clientID, topic: topic, sink: sink, log: log}
}

// Run connects (retrying in the background) and blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) {
	opts := paho.NewClientOptions().
		AddBroker(l.broker).
		SetClientID(l.clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(l.topic, qos, func(_ paho.Client, m paho.Message) {
				l.handle(m.Payload())
			})
			token.Wait()
			if err := token.Error(); err != nil {
				l.log.Errorw("mqtt_subscribe_failed", "topic", l.topic, "err", err)
				return
			}
			l.log.Infow("mqtt_subscribed", "topic", l.topic)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			l.log.Warnw("mqtt_connection_lost", "err", err)
		})

	client := paho.NewClient(opts)
	client.Connect()
	l.log.Infow("mqtt_connecting", "broker", l.broker)

	<-ctx.Done()
	client.Disconnect(disconnectQuiesce)
	l.log.Infow("mqtt_disconnected")
}

func (l *Listener) handle(payload []byte) {
	cmd := strings.TrimSpace(string(payload))
	if cmd == "" {
		l.log.Debugw("mqtt_empty_payload_ignored", "topic", l.topic)
		return
	}
	if err := l.sink.WriteCommand(cmd); err != nil {
		metrics.CommandsForwarded.WithLabelValues("mqtt", "error").Inc()
		l.log.Errorw("command_forward_failed", "source", "mqtt", "command", cmd, "err", err)
		return
	}
	metrics.CommandsForwarded.WithLabelValues("mqtt", "ok").Inc()
	l.log.Infow("command_forwarded", "source", "mqtt", "command", cmd)
}
