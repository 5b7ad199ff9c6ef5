// Package notify publishes scan summaries to a NATS subject so external
// dashboards and alerting can react to a scan without polling scan history.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/aalsanie/shamash-sub001/internal/pipeline"
	"github.com/aalsanie/shamash-sub001/pkg/shamashlog"
)

// ScanSummary is the payload published for every completed scan.
type ScanSummary struct {
	ScanID       int64  `json:"scanId"`
	FindingCount int    `json:"findingCount"`
	ScoreValue   int    `json:"scoreValue"`
	ScoreBand    string `json:"scoreBand"`
}

// Publisher wraps a NATS connection scoped to one subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials url and returns a Publisher bound to subject. The connection
// is not retried automatically beyond nats.go's own reconnect handling.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.ReconnectWait(nats.DefaultReconnectWait), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &Publisher{conn: conn, subject: subject}, nil
}

// PublishScanSummary marshals and publishes a ScanSummary for result.
func (p *Publisher) PublishScanSummary(scanID int64, result pipeline.Result) error {
	summary := ScanSummary{
		ScanID:       scanID,
		FindingCount: len(result.Findings),
		ScoreValue:   result.Score.Value,
		ScoreBand:    string(result.Score.Band),
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling scan summary: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	shamashlog.Debugf("published scan summary to %s: %s", p.subject, payload)
	return nil
}

// Close drains and closes the underlying NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
