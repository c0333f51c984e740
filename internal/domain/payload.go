package domain

import (
	"encoding/json"
	"sort"
)

// Payload holds the typed fields extracted from a record's content.
type Payload interface {
	payload()
}

// ChosenOrders lists the maker offers a taker selected.
type ChosenOrders struct {
	Orders []json.RawMessage `json:"orders"`
}

// CJAmount is the coinjoin amount.
type CJAmount struct {
	AmountSats int64 `json:"amount_sats"`
}

// CJFee is either an absolute fee or a relative one; exactly one field is set.
type CJFee struct {
	FeeSats    *int64 `json:"fee_sats,omitempty"`
	FeePercent string `json:"fee_percent,omitempty"`
}

// TxInput is a normalized transaction input.
type TxInput struct {
	Outpoint  string          `json:"outpoint"`
	ScriptSig json.RawMessage `json:"scriptSig"`
	NSequence json.RawMessage `json:"nSequence"`
	Witness   json.RawMessage `json:"witness"`
}

// TxOutput is a normalized transaction output.
type TxOutput struct {
	ValueSats    json.RawMessage `json:"value_sats"`
	ScriptPubKey json.RawMessage `json:"scriptPubKey"`
	Address      json.RawMessage `json:"address"`
}

// TxObtained is a transaction snapshot. Fields other than inputs and outputs
// are kept as-is in Extra.
type TxObtained struct {
	Inputs  []TxInput
	Outputs []TxOutput
	Extra   map[string]json.RawMessage
}

// HasInput reports whether any input spends the given outpoint.
func (t *TxObtained) HasInput(outpoint string) bool {
	for _, in := range t.Inputs {
		if in.Outpoint == outpoint {
			return true
		}
	}
	return false
}

func (t *TxObtained) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(t.Extra)+2)
	keys := make([]string, 0, len(t.Extra)+2)
	for k, v := range t.Extra {
		fields[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if t.Inputs != nil {
		b, err := json.Marshal(t.Inputs)
		if err != nil {
			return nil, err
		}
		fields["inputs"] = b
		keys = append(keys, "inputs")
	}
	if t.Outputs != nil {
		b, err := json.Marshal(t.Outputs)
		if err != nil {
			return nil, err
		}
		fields["outputs"] = b
		keys = append(keys, "outputs")
	}

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		name, _ := json.Marshal(k)
		buf = append(buf, name...)
		buf = append(buf, ':')
		buf = append(buf, fields[k]...)
	}
	return append(buf, '}'), nil
}

// TxSend carries the txid of a broadcast transaction.
type TxSend struct {
	TxID string `json:"txid"`
}

// ScheduleItem is one entry of a taker schedule.
type ScheduleItem struct {
	Mixdepth       *int            `json:"mixdepth"`
	AmountSats     json.RawMessage `json:"amount_sats"`
	Counterparties json.RawMessage `json:"counterparties"`
	ToAddress      json.RawMessage `json:"to_address"`
}

// FillingOffer is a maker accepting a taker's request.
type FillingOffer struct {
	Mixdepth   int   `json:"mixdepth"`
	AmountSats int64 `json:"amount_sats"`
}

// SendingOutput is the maker's destination address for a coinjoin.
type SendingOutput struct {
	ToAddress string `json:"to_address"`
}

// CJInfo holds the maker's coinjoin and change addresses.
type CJInfo struct {
	CJAddr string `json:"cjaddr"`
	Change string `json:"change"`
}

// UTXO is a wallet output identified by its outpoint (txid:vout).
type UTXO struct {
	Outpoint string `json:"outpoint"`
	Path     string `json:"path"`
	Address  string `json:"address"`
	Value    int64  `json:"value"`
}

// TxID returns the transaction id part of the outpoint.
func (u UTXO) TxID() string {
	for i := 0; i < len(u.Outpoint); i++ {
		if u.Outpoint[i] == ':' {
			return u.Outpoint[:i]
		}
	}
	return u.Outpoint
}

// UTXOSet holds the UTXOs of an utxos_added/utxos_removed record.
type UTXOSet struct {
	UTXOs []UTXO `json:"utxos"`
}

// CJEarned is the fee a maker potentially earned.
type CJEarned struct {
	Sats int64 `json:"sats"`
}

// TxConfirmed reports a confirmation.
type TxConfirmed struct {
	Block         string `json:"block"`
	Confirmations int    `json:"confirmations"`
}

func (*ChosenOrders) payload()  {}
func (*CJAmount) payload()      {}
func (*CJFee) payload()         {}
func (*TxObtained) payload()    {}
func (*TxSend) payload()        {}
func (*ScheduleItem) payload()  {}
func (*FillingOffer) payload()  {}
func (*SendingOutput) payload() {}
func (*CJInfo) payload()        {}
func (*UTXOSet) payload()       {}
func (*CJEarned) payload()      {}
func (*TxConfirmed) payload()   {}
