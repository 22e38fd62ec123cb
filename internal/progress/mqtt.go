package progress

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/batch"
)

// Publisher publishes raw MQTT payloads
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTT publishes every update as JSON. Terminal states are retained so
// late subscribers see how the last run ended.
type MQTT struct {
	publisher Publisher
	topic     string
	qos       byte
	logger    *zap.Logger
}

// NewMQTT creates an MQTT observer
func NewMQTT(publisher Publisher, topic string, qos byte, logger *zap.Logger) *MQTT {
	return &MQTT{publisher: publisher, topic: topic, qos: qos, logger: logger}
}

// OnProgress implements batch.Observer
func (m *MQTT) OnProgress(p batch.Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		m.logger.Error("Failed to encode progress", zap.Error(err))
		return
	}
	if err := m.publisher.Publish(m.topic, m.qos, p.State.Terminal(), payload); err != nil {
		m.logger.Warn("Failed to publish progress",
			zap.String("topic", m.topic),
			zap.String("run_id", p.RunID),
			zap.Error(err))
	}
}
