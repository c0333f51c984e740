package usecase

import (
	"fmt"
	"strings"

	"github.com/V4T54L/jmlog/internal/domain"
)

const (
	labelFunding    = "Funding"
	labelWithdrawal = "Withdrawal"
	labelCoinjoined = "Coinjoined"
	labelChange     = "Change"
)

// sessionView picks the first record of each labelled type from one session.
type sessionView struct {
	fillingOffer *domain.FillingOffer
	txSend       *domain.TxSend
	schedule     *domain.ScheduleItem
	added        []domain.UTXO
	removed      []domain.UTXO
	hasRemoved   bool
	cjInfo       *domain.CJInfo
}

func newSessionView(records []*domain.LogRecord) sessionView {
	var v sessionView
	if r := domain.FindType(records, domain.EventFillingOffer); r != nil {
		v.fillingOffer, _ = r.Payload.(*domain.FillingOffer)
	}
	if r := domain.FindType(records, domain.EventTxSend); r != nil {
		v.txSend, _ = r.Payload.(*domain.TxSend)
	}
	if r := domain.FindType(records, domain.EventScheduleItem); r != nil {
		v.schedule, _ = r.Payload.(*domain.ScheduleItem)
	}
	if r := domain.FindType(records, domain.EventUTXOsAdded); r != nil {
		v.added = r.UTXOs()
	}
	if r := domain.FindType(records, domain.EventUTXOsRemoved); r != nil {
		v.removed, v.hasRemoved = r.UTXOs(), true
	}
	if r := domain.FindType(records, domain.EventCJInfo); r != nil {
		v.cjInfo, _ = r.Payload.(*domain.CJInfo)
	}
	return v
}

// withRole prefixes a contextual label with the session's role label, if any.
func withRole(role, label string) string {
	return strings.TrimSpace(role + " " + label)
}

// DeriveLabels builds the BIP-329 labels for a finished session map. Labels are
// emitted in session order and never reordered.
func DeriveLabels(sessions *domain.SessionMap) []domain.Label {
	var labels []domain.Label
	for _, key := range sessions.Keys() {
		labels = appendSessionLabels(labels, newSessionView(sessions.Get(key)))
	}
	return labels
}

func appendSessionLabels(labels []domain.Label, v sessionView) []domain.Label {
	var role string
	switch {
	case v.fillingOffer != nil && len(v.added) > 0:
		role = fmt.Sprintf("Mixdepth %d Maker", v.fillingOffer.Mixdepth)
		labels = append(labels, domain.Label{Type: domain.LabelTx, Ref: v.added[0].TxID(), Label: role})
	case v.hasRemoved && v.txSend != nil:
		role = "Taker"
		if v.schedule != nil && v.schedule.Mixdepth != nil {
			role = fmt.Sprintf("Mixdepth %d Taker", *v.schedule.Mixdepth)
		}
		labels = append(labels, domain.Label{Type: domain.LabelTx, Ref: v.txSend.TxID, Label: role})
	}

	if v.cjInfo != nil {
		labels = append(labels,
			domain.Label{Type: domain.LabelAddr, Ref: v.cjInfo.CJAddr, Label: withRole(role, labelCoinjoined)},
			domain.Label{Type: domain.LabelAddr, Ref: v.cjInfo.Change, Label: withRole(role, labelChange)},
		)
	}

	for _, u := range v.added {
		label := labelFunding
		if v.cjInfo != nil {
			label = withRole(role, labelChange)
			if u.Address == v.cjInfo.CJAddr {
				label = withRole(role, labelCoinjoined)
			}
		}
		labels = append(labels, domain.Label{Type: domain.LabelOutput, Ref: u.Outpoint, Label: label})
	}

	for _, u := range v.removed {
		label := labelWithdrawal
		if v.cjInfo != nil {
			label = withRole(role, labelCoinjoined)
		}
		if prev, ok := findOutputLabel(labels, u.Outpoint); ok {
			label = prev.Label + ", " + label
		}
		labels = append(labels, domain.Label{Type: domain.LabelInput, Ref: u.Outpoint, Label: label})
	}
	return labels
}

// findOutputLabel returns the first non-funding output label for outpoint.
func findOutputLabel(labels []domain.Label, outpoint string) (domain.Label, bool) {
	for _, l := range labels {
		if l.Type == domain.LabelOutput && l.Ref == outpoint && l.Label != labelFunding {
			return l, true
		}
	}
	return domain.Label{}, false
}
