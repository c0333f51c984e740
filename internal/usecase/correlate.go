package usecase

import (
	"strings"

	"github.com/V4T54L/jmlog/internal/domain"
)

// adoptFrom lists, per event type, the types of an immediately preceding record
// whose timestamp (and so session) the event takes over.
var adoptFrom = map[domain.EventType][]domain.EventType{
	domain.EventSendingOutput: {domain.EventFillingOffer},
	domain.EventTxObtained: {
		domain.EventSendingOutput,
		domain.EventFillingOffer,
		domain.EventCJFee,
		domain.EventCJAmount,
		domain.EventChosenOrders,
	},
	domain.EventCJEarned:     {domain.EventUTXOsRemoved, domain.EventTxObtained},
	domain.EventCJInfo:       {domain.EventCJEarned, domain.EventTxObtained},
	domain.EventScheduleItem: {domain.EventUTXOsRemoved, domain.EventTxObtained},
	domain.EventTxSend:       {domain.EventScheduleItem},
}

// sessionMatcher returns the predicate an existing session must satisfy for rec
// to join it, or nil if rec is not correlated by cross reference.
type sessionMatcher func(rec *domain.LogRecord) func(records []*domain.LogRecord) bool

var crossReference = map[domain.EventType]sessionMatcher{
	domain.EventUTXOsRemoved: spendsRemovedUTXO,
	domain.EventUTXOsAdded:   paysCJAddress,
	domain.EventTxConfirmed:  confirmsAddedUTXO,
}

// A removal joins the session whose obtained transaction spends its first UTXO.
func spendsRemovedUTXO(rec *domain.LogRecord) func([]*domain.LogRecord) bool {
	utxos := rec.UTXOs()
	if len(utxos) == 0 {
		return nil
	}
	outpoint := utxos[0].Outpoint
	return func(records []*domain.LogRecord) bool {
		for _, r := range records {
			if tx, ok := r.Payload.(*domain.TxObtained); ok && tx.HasInput(outpoint) {
				return true
			}
		}
		return false
	}
}

// An addition joins the session whose cj_info names its first UTXO's address.
func paysCJAddress(rec *domain.LogRecord) func([]*domain.LogRecord) bool {
	utxos := rec.UTXOs()
	if len(utxos) == 0 {
		return nil
	}
	address := utxos[0].Address
	return func(records []*domain.LogRecord) bool {
		for _, r := range records {
			if info, ok := r.Payload.(*domain.CJInfo); ok && (info.CJAddr == address || info.Change == address) {
				return true
			}
		}
		return false
	}
}

// A confirmation joins the session holding an added UTXO whose outpoint starts
// with the logged block hash. The client logs a block hash here, not a txid, so
// this rarely matches; the behavior is kept as observed.
func confirmsAddedUTXO(rec *domain.LogRecord) func([]*domain.LogRecord) bool {
	conf, ok := rec.Payload.(*domain.TxConfirmed)
	if !ok {
		return nil
	}
	return func(records []*domain.LogRecord) bool {
		for _, r := range records {
			if r.Type != domain.EventUTXOsAdded {
				continue
			}
			for _, u := range r.UTXOs() {
				if strings.HasPrefix(u.Outpoint, conf.Block) {
					return true
				}
			}
		}
		return false
	}
}

// Correlator folds a sorted record sequence into sessions.
type Correlator struct {
	sessions *domain.SessionMap
	prev     *domain.LogRecord
}

// NewCorrelator creates a Correlator with an empty session map.
func NewCorrelator() *Correlator {
	return &Correlator{sessions: domain.NewSessionMap()}
}

// Correlate folds records into a new session map.
func Correlate(records []*domain.LogRecord) *domain.SessionMap {
	c := NewCorrelator()
	for _, rec := range records {
		c.Add(rec)
	}
	return c.Sessions()
}

// Add places one record into its session. Records must be added in global
// timestamp order.
func (c *Correlator) Add(rec *domain.LogRecord) {
	key := rec.Key()

	if match, ok := crossReference[rec.Type]; ok {
		if pred := match(rec); pred != nil {
			found, ok := c.sessions.Find(func(records []*domain.LogRecord) bool {
				return !domain.HasType(records, rec.Type) && pred(records)
			})
			if ok {
				key = found
			}
		}
	} else if c.prev != nil && follows(rec.Type, c.prev.Type) {
		rec.Timestamp = c.prev.Timestamp
		key = rec.Key()
	}

	c.sessions.Append(key, rec)
	c.prev = rec
}

// Sessions returns the session map built so far.
func (c *Correlator) Sessions() *domain.SessionMap {
	return c.sessions
}

func follows(t, prev domain.EventType) bool {
	for _, allowed := range adoptFrom[t] {
		if allowed == prev {
			return true
		}
	}
	return false
}
