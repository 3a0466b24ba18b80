package predictor

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes completed predictions as json on a nats subject.
type NATSPublisher struct {
	natsConn *nats.Conn
	subject  string
}

// MakeNATSPublisher builds a NATSPublisher on natsConn publishing to subject.
func MakeNATSPublisher(natsConn *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{
		natsConn: natsConn,
		subject:  subject,
	}
}

// PublishPrediction sends the result on the configured subject.
func (p *NATSPublisher) PublishPrediction(result *Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error marshaling prediction: %w", err)
	}
	if err = p.natsConn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("error publishing prediction on %s: %w", p.subject, err)
	}
	return nil
}
