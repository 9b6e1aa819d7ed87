package models

import "time"

// OperationType is the trade direction of a signal.
type OperationType string

const (
	OperationLong  OperationType = "LONG"
	OperationShort OperationType = "SHORT"
)

const (
	StatusActive         = "Ativo"
	ConfidenceHigh       = "Alta"
	NotAvailable         = "N/A"
	StrategyNotSpecified = "Não especificado"
)

// SignalRecord is the normalized trading signal sent to the ingestion
// endpoint. The JSON field names are part of the wire contract.
type SignalRecord struct {
	Coin       string        `json:"coin"`
	Type       OperationType `json:"type"`
	Entry      string        `json:"entry"`
	Strategy   string        `json:"strategy"`
	RSIValue   string        `json:"rsiValue"`
	Timeframe  string        `json:"timeframe"`
	Status     string        `json:"status"`
	Confidence string        `json:"confidence"`
}

// ParsedFields holds the intermediate extraction result. Optional fields are
// nil when no pattern matched.
type ParsedFields struct {
	Coin      string
	Type      OperationType
	Entry     string
	Strategy  *string
	RSIValue  *string
	Timeframe *string
}

// Missing lists the required fields that were not extracted, in the order
// coin, type, entry.
func (p ParsedFields) Missing() []string {
	var missing []string
	if p.Coin == "" {
		missing = append(missing, "coin")
	}
	if p.Type == "" {
		missing = append(missing, "type")
	}
	if p.Entry == "" {
		missing = append(missing, "entry")
	}
	return missing
}

// ChannelMessage is a single post received from the chat platform.
type ChannelMessage struct {
	ChatID    string
	ChatType  string
	MessageID int
	Text      string
	Date      time.Time
}

// Archive outcomes.
const (
	OutcomeAccepted       = "accepted"
	OutcomeRejected       = "rejected"
	OutcomeDispatchFailed = "dispatch_failed"
)

// ArchivedMessage is the document stored for every candidate message.
type ArchivedMessage struct {
	ID         string        `json:"id"`
	ReceivedAt time.Time     `json:"received_at"`
	ChatID     string        `json:"chat_id"`
	MessageID  int           `json:"message_id"`
	Text       string        `json:"text"`
	Outcome    string        `json:"outcome"`
	Signal     *SignalRecord `json:"signal,omitempty"`
	Missing    []string      `json:"missing,omitempty"`
	Error      string        `json:"error,omitempty"`
}
