package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// ISOLayout is the session key and "date" format: UTC with millisecond precision.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// ErrNoMatch is returned by field extractors when the content does not have the expected shape.
var ErrNoMatch = errors.New("content does not match expected format")

// EventType identifies a recognized JoinMarket log event.
type EventType string

const (
	EventUTXOsAdded    EventType = "utxos_added"
	EventUTXOsRemoved  EventType = "utxos_removed"
	EventChosenOrders  EventType = "chosen_orders"
	EventCJAmount      EventType = "cj_amount"
	EventCJFee         EventType = "cj_fee"
	EventTxObtained    EventType = "tx_obtained"
	EventTxSend        EventType = "tx_send"
	EventScheduleItem  EventType = "schedule_item"
	EventFillingOffer  EventType = "filling_offer"
	EventSendingOutput EventType = "sending_output"
	EventTxConfirmed   EventType = "tx_confirmed"
	EventCJEarned      EventType = "cj_earned"
	EventCJInfo        EventType = "cj_info"
)

// LogRecord is a single recognized event reconstructed from one or more log lines.
type LogRecord struct {
	Timestamp  time.Time
	Type       EventType
	SourceFile string

	// RawContent is non-nil while the record is unparsed, or when parsing fell back.
	RawContent *string
	Payload    Payload
}

// Key returns the session key derived from the record's current timestamp.
func (r *LogRecord) Key() string {
	return r.Timestamp.UTC().Format(ISOLayout)
}

// AppendContent adds a continuation line to the raw content buffer.
func (r *LogRecord) AppendContent(line string) {
	if r.RawContent == nil {
		r.RawContent = new(string)
	}
	*r.RawContent += "\n" + line
}

// Content returns the raw content, or "" if none is held.
func (r *LogRecord) Content() string {
	if r.RawContent == nil {
		return ""
	}
	return *r.RawContent
}

// UTXOs returns the UTXO list of an utxos_added/utxos_removed record, or nil.
func (r *LogRecord) UTXOs() []UTXO {
	if p, ok := r.Payload.(*UTXOSet); ok {
		return p.UTXOs
	}
	return nil
}

type recordHeader struct {
	Date    string    `json:"date"`
	Type    EventType `json:"type"`
	File    string    `json:"file,omitempty"`
	Content *string   `json:"content,omitempty"`
}

// MarshalJSON flattens the header and the payload fields into one object.
func (r *LogRecord) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(recordHeader{
		Date:    r.Key(),
		Type:    r.Type,
		File:    r.SourceFile,
		Content: r.RawContent,
	})
	if err != nil {
		return nil, err
	}
	if r.Payload == nil {
		return head, nil
	}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, err
	}
	return mergeObjects(head, body), nil
}

// mergeObjects joins two marshalled JSON objects into one.
func mergeObjects(a, b []byte) []byte {
	b = bytes.TrimSpace(b)
	if len(b) <= 2 {
		return a
	}
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a[:len(a)-1]...)
	out = append(out, ',')
	return append(out, b[1:]...)
}

// Mode selects which events are recognized and whether labels are derived.
type Mode string

const (
	// ModeFull recognizes maker and taker events and derives labels.
	ModeFull Mode = "full"
	// ModeReduced recognizes taker events only and derives no labels.
	ModeReduced Mode = "reduced"
)
