package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SettlementEvent is broadcast after a reward settles, for downstream
// consumers (notifications, analytics).
type SettlementEvent struct {
	StudentID    uint      `json:"student_id"`
	ActivityID   uint      `json:"activity_id"`
	Amount       float64   `json:"amount"`
	TxHash       string    `json:"tx_hash"`
	NewBalance   float64   `json:"new_balance"`
	ActivityName string    `json:"activity_name"`
	SettledAt    time.Time `json:"settled_at"`
}

// ReconciliationAlert flags a wallet drift or a confirmed-but-unsettled
// registration for operator attention.
type ReconciliationAlert struct {
	Kind           string    `json:"kind"` // balance_drift | missing_settlement
	Address        string    `json:"address,omitempty"`
	StudentID      uint      `json:"student_id,omitempty"`
	ActivityID     uint      `json:"activity_id,omitempty"`
	CachedBalance  float64   `json:"cached_balance,omitempty"`
	ChainBalance   float64   `json:"chain_balance,omitempty"`
	RegistrationID uint      `json:"registration_id,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
}

// EventPublisher fans settlement lifecycle events out to the message bus.
type EventPublisher interface {
	PublishSettlement(ctx context.Context, event SettlementEvent)
	PublishReconciliationAlert(ctx context.Context, alert ReconciliationAlert)
}

type natsPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewNATSPublisher constructs a publisher on subjects derived from the
// channel base ("campuscoin" -> "campuscoin.settlements"). Publishing is
// best-effort: a bus outage never fails a settlement.
func NewNATSPublisher(conn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	base := strings.ReplaceAll(strings.TrimSpace(channelBase), ":", ".")
	if base == "" {
		base = "campuscoin"
	}
	return &natsPublisher{
		conn:        conn,
		subjectBase: base,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) PublishSettlement(ctx context.Context, event SettlementEvent) {
	p.publish(p.subjectBase+".settlements", event)
}

func (p *natsPublisher) PublishReconciliationAlert(ctx context.Context, alert ReconciliationAlert) {
	p.publish(p.subjectBase+".reconciliation.alerts", alert)
}

func (p *natsPublisher) publish(subject string, payload interface{}) {
	if p.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("failed to encode event")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

// NopPublisher discards all events. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) PublishSettlement(context.Context, SettlementEvent) {}

func (NopPublisher) PublishReconciliationAlert(context.Context, ReconciliationAlert) {}
