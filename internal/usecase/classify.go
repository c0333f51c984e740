package usecase

import (
	"strings"

	"github.com/V4T54L/jmlog/internal/domain"
)

type classifyRule struct {
	prefix string
	event  domain.EventType
	// seed means the payload itself is the first line of the record's content.
	seed bool
}

// Order matters: the first matching prefix wins.
var classifyRules = []classifyRule{
	{"Added utxos=", domain.EventUTXOsAdded, false},
	{"Removed utxos=", domain.EventUTXOsRemoved, false},
	{"chosen orders =", domain.EventChosenOrders, false},
	{"cj amount =", domain.EventCJAmount, true},
	{"total cj fee =", domain.EventCJFee, true},
	{"total coinjoin fee =", domain.EventCJFee, true},
	{"obtained tx", domain.EventTxObtained, false},
	{"txid = ", domain.EventTxSend, true},
	{"schedule item was: ", domain.EventScheduleItem, true},
	{"filling offer", domain.EventFillingOffer, true},
	{"sending output to address=", domain.EventSendingOutput, true},
	{"tx in a block", domain.EventTxConfirmed, true},
	{"potentially earned", domain.EventCJEarned, true},
	{"mycjaddr, mychange", domain.EventCJInfo, true},
}

var reducedEvents = map[domain.EventType]bool{
	domain.EventUTXOsAdded:   true,
	domain.EventUTXOsRemoved: true,
	domain.EventChosenOrders: true,
	domain.EventCJAmount:     true,
	domain.EventCJFee:        true,
	domain.EventTxObtained:   true,
	domain.EventTxSend:       true,
	domain.EventScheduleItem: true,
	domain.EventTxConfirmed:  true,
}

// Classification is the result of a successful classification.
type Classification struct {
	Type domain.EventType
	// Content is the initial content buffer of the record.
	Content string
}

// Classifier maps log payloads to event types.
type Classifier struct {
	mode domain.Mode
}

// NewClassifier creates a Classifier for the given operating mode.
func NewClassifier(mode domain.Mode) *Classifier {
	return &Classifier{mode: mode}
}

// Classify returns the event type of payload, or false if it starts no recognized event.
func (c *Classifier) Classify(payload string) (Classification, bool) {
	for _, rule := range classifyRules {
		if !strings.HasPrefix(payload, rule.prefix) {
			continue
		}
		if c.mode == domain.ModeReduced && !reducedEvents[rule.event] {
			return Classification{}, false
		}
		cl := Classification{Type: rule.event}
		if rule.seed {
			cl.Content = payload
		}
		return cl, true
	}
	return Classification{}, false
}
