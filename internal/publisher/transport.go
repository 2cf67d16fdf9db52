package publisher

import (
	"github.com/fleetsim/fleetsim-core/internal/infrastructure/mqtt"
)

// MQTTTransport adapts the MQTT client to the pipeline's Transport
// interface, pinning the topic and QoS every batch publishes with.
type MQTTTransport struct {
	client *mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTTransport creates a transport publishing to topic at the given QoS.
func NewMQTTTransport(client *mqtt.Client, topic string, qos byte) *MQTTTransport {
	return &MQTTTransport{
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

// Publish sends payload to the configured topic.
func (t *MQTTTransport) Publish(payload []byte) error {
	return t.client.Publish(t.topic, payload, t.qos, false)
}

// Connected reports whether the underlying client holds a live connection.
func (t *MQTTTransport) Connected() bool {
	return t.client.IsConnected()
}

// Connect dials the broker if not already connected.
func (t *MQTTTransport) Connect() error {
	return t.client.Connect()
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() error {
	return t.client.Close()
}
