package mlmodels

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Scorer produces the predicted delay in seconds for one scorer input row.
// Negative predictions mean the bus is expected early. The trained model
// itself is opaque to this system.
type Scorer interface {
	Score(row *InputRow) (float64, error)
}

// scoreRequest is the payload sent to the model runner.
type scoreRequest struct {
	Columns   []string  `json:"columns"`
	Values    []float64 `json:"values"`
	Timestamp int64     `json:"timestamp"`
}

// scoreResponse is the payload the model runner replies with.
type scoreResponse struct {
	Prediction float64 `json:"prediction"`
	Error      string  `json:"error"`
	Timestamp  int64   `json:"timestamp"`
}

// NATSScorer requests inferences from the external model runner over a nats
// request/reply subject.
type NATSScorer struct {
	natsConn *nats.Conn
	subject  string
	timeout  time.Duration
}

// MakeNATSScorer builds a NATSScorer on natsConn requesting on subject.
func MakeNATSScorer(natsConn *nats.Conn, subject string, timeout time.Duration) *NATSScorer {
	return &NATSScorer{
		natsConn: natsConn,
		subject:  subject,
		timeout:  timeout,
	}
}

// Score sends the input row to the model runner and returns its scalar
// prediction.
func (s *NATSScorer) Score(row *InputRow) (float64, error) {
	request := scoreRequest{
		Columns:   row.Columns,
		Values:    row.Values,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(&request)
	if err != nil {
		return 0, fmt.Errorf("error marshaling inference request: %w", err)
	}
	msg, err := s.natsConn.Request(s.subject, payload, s.timeout)
	if err != nil {
		return 0, fmt.Errorf("inference request on %s failed: %w", s.subject, err)
	}
	response := scoreResponse{}
	if err = json.Unmarshal(msg.Data, &response); err != nil {
		return 0, fmt.Errorf("error parsing inference response: %w, payload:%s", err, string(msg.Data))
	}
	if len(response.Error) > 0 {
		return 0, fmt.Errorf("model runner reported error: %s", response.Error)
	}
	return response.Prediction, nil
}
