package usecase

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/V4T54L/jmlog/internal/domain"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rawRecord(t domain.EventType, content string) *domain.LogRecord {
	return &domain.LogRecord{
		Timestamp:  time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC),
		Type:       t,
		SourceFile: "test.log",
		RawContent: &content,
	}
}

func TestNormalizer_Merge(t *testing.T) {
	at := func(sec int, file string) *domain.LogRecord {
		return &domain.LogRecord{Timestamp: time.Date(2023, 1, 1, 0, 0, sec, 0, time.UTC), SourceFile: file}
	}
	a1, a2 := at(1, "a"), at(3, "a")
	b1, b2 := at(1, "b"), at(2, "b")

	merged := newTestNormalizer().Merge([][]*domain.LogRecord{{a1, a2}, {b1, b2}})

	want := []*domain.LogRecord{a1, b1, b2, a2}
	if len(merged) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(merged))
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Errorf("index %d: got %s@%v, want %s@%v", i, merged[i].SourceFile, merged[i].Timestamp, want[i].SourceFile, want[i].Timestamp)
		}
	}
}

func TestNormalizer_SimpleFields(t *testing.T) {
	n := newTestNormalizer()

	t.Run("cj amount", func(t *testing.T) {
		rec := rawRecord(domain.EventCJAmount, "cj amount = 1234567")
		if !n.Normalize(rec) {
			t.Fatal("expected success")
		}
		if p := rec.Payload.(*domain.CJAmount); p.AmountSats != 1234567 {
			t.Errorf("amount = %d", p.AmountSats)
		}
		if rec.RawContent != nil {
			t.Error("raw content should be cleared")
		}
	})

	t.Run("cj fee sats", func(t *testing.T) {
		rec := rawRecord(domain.EventCJFee, "total cj fee = 1500")
		if !n.Normalize(rec) {
			t.Fatal("expected success")
		}
		p := rec.Payload.(*domain.CJFee)
		if p.FeeSats == nil || *p.FeeSats != 1500 || p.FeePercent != "" {
			t.Errorf("unexpected fee payload %+v", p)
		}
	})

	t.Run("cj fee percent", func(t *testing.T) {
		rec := rawRecord(domain.EventCJFee, "total coinjoin fee = 0.0123%")
		if !n.Normalize(rec) {
			t.Fatal("expected success")
		}
		p := rec.Payload.(*domain.CJFee)
		if p.FeeSats != nil || p.FeePercent != "0.0123%" {
			t.Errorf("unexpected fee payload %+v", p)
		}
	})

	t.Run("tx send", func(t *testing.T) {
		rec := rawRecord(domain.EventTxSend, "txid = 9f8e7d")
		if !n.Normalize(rec) || rec.Payload.(*domain.TxSend).TxID != "9f8e7d" {
			t.Errorf("unexpected payload %+v", rec.Payload)
		}
	})

	t.Run("filling offer", func(t *testing.T) {
		rec := rawRecord(domain.EventFillingOffer, "filling offer, mixdepth=3, amount=25000000")
		if !n.Normalize(rec) {
			t.Fatal("expected success")
		}
		if p := rec.Payload.(*domain.FillingOffer); p.Mixdepth != 3 || p.AmountSats != 25000000 {
			t.Errorf("unexpected payload %+v", p)
		}
	})

	t.Run("sending output", func(t *testing.T) {
		rec := rawRecord(domain.EventSendingOutput, "sending output to address=bc1qdest")
		if !n.Normalize(rec) || rec.Payload.(*domain.SendingOutput).ToAddress != "bc1qdest" {
			t.Errorf("unexpected payload %+v", rec.Payload)
		}
	})

	t.Run("cj info", func(t *testing.T) {
		rec := rawRecord(domain.EventCJInfo, "mycjaddr, mychange = bc1qcj, bc1qchange")
		if !n.Normalize(rec) {
			t.Fatal("expected success")
		}
		if p := rec.Payload.(*domain.CJInfo); p.CJAddr != "bc1qcj" || p.Change != "bc1qchange" {
			t.Errorf("unexpected payload %+v", p)
		}
	})

	t.Run("cj earned", func(t *testing.T) {
		rec := rawRecord(domain.EventCJEarned, "potentially earned = 0.00000250 BTC (250 sats)")
		if !n.Normalize(rec) || rec.Payload.(*domain.CJEarned).Sats != 250 {
			t.Errorf("unexpected payload %+v", rec.Payload)
		}
	})

	t.Run("tx confirmed", func(t *testing.T) {
		rec := rawRecord(domain.EventTxConfirmed, "tx in a block: 0000abcd with 2 confirmations")
		if !n.Normalize(rec) {
			t.Fatal("expected success")
		}
		if p := rec.Payload.(*domain.TxConfirmed); p.Block != "0000abcd" || p.Confirmations != 2 {
			t.Errorf("unexpected payload %+v", p)
		}
	})
}

func TestNormalizer_UTXOs(t *testing.T) {
	rec := rawRecord(domain.EventUTXOsAdded, "\naaaa:0 - path: m/84'/0'/0'/0/1, address: bc1qx , value: 1000\nbbbb:12 - path: m/84'/0'/0'/1/2, address: bc1qy, value: 2000\n")
	if !newTestNormalizer().Normalize(rec) {
		t.Fatal("expected success")
	}
	utxos := rec.UTXOs()
	want := []domain.UTXO{
		{Outpoint: "aaaa:0", Path: "m/84'/0'/0'/0/1", Address: "bc1qx", Value: 1000},
		{Outpoint: "bbbb:12", Path: "m/84'/0'/0'/1/2", Address: "bc1qy", Value: 2000},
	}
	if len(utxos) != len(want) {
		t.Fatalf("expected %d utxos, got %d", len(want), len(utxos))
	}
	for i := range want {
		if utxos[i] != want[i] {
			t.Errorf("utxo %d = %+v, want %+v", i, utxos[i], want[i])
		}
	}
}

func TestNormalizer_ScheduleItem(t *testing.T) {
	rec := rawRecord(domain.EventScheduleItem, "schedule item was: [2, 0.5, 9, 'bc1qdest', 0.0, 16, 0]")
	if !newTestNormalizer().Normalize(rec) {
		t.Fatal("expected success")
	}
	p := rec.Payload.(*domain.ScheduleItem)
	if p.Mixdepth == nil || *p.Mixdepth != 2 {
		t.Errorf("mixdepth = %v, want 2", p.Mixdepth)
	}
	if string(p.AmountSats) != "0.5" || string(p.Counterparties) != "9" || string(p.ToAddress) != `"bc1qdest"` {
		t.Errorf("unexpected positional fields %s %s %s", p.AmountSats, p.Counterparties, p.ToAddress)
	}
}

func TestNormalizer_TxObtainedLegacy(t *testing.T) {
	content := "{'ins': [{'outpoint': {'hash': 'deadbeef', 'index': 1}, 'script': '', 'sequence': 4294967295}], " +
		"'outs': [{'value': 5000, 'script': '0014abcd'}], 'locktime': 0, 'version': 1}"
	rec := rawRecord(domain.EventTxObtained, content)
	if !newTestNormalizer().Normalize(rec) {
		t.Fatal("expected success")
	}
	tx := rec.Payload.(*domain.TxObtained)
	if len(tx.Inputs) != 1 || tx.Inputs[0].Outpoint != "deadbeef:1" {
		t.Fatalf("unexpected inputs %+v", tx.Inputs)
	}
	if tx.Inputs[0].Witness != nil || string(tx.Inputs[0].NSequence) != "4294967295" || string(tx.Inputs[0].ScriptSig) != `""` {
		t.Errorf("unexpected input fields %+v", tx.Inputs[0])
	}
	if len(tx.Outputs) != 1 || string(tx.Outputs[0].ValueSats) != "5000" || string(tx.Outputs[0].ScriptPubKey) != `"0014abcd"` {
		t.Errorf("unexpected outputs %+v", tx.Outputs)
	}
	if _, ok := tx.Extra["ins"]; ok {
		t.Error("legacy ins must not be kept as passthrough")
	}
	if string(tx.Extra["locktime"]) != "0" {
		t.Errorf("passthrough locktime = %s", tx.Extra["locktime"])
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	inputs := out["inputs"].([]interface{})
	in := inputs[0].(map[string]interface{})
	if w, ok := in["witness"]; !ok || w != nil {
		t.Errorf("witness must be present and null, got %v (present %v)", w, ok)
	}
	if _, ok := out["content"]; ok {
		t.Error("content must be absent once normalized")
	}
	if out["date"] != "2023-05-01T10:00:00.000Z" || out["type"] != "tx_obtained" || out["file"] != "test.log" {
		t.Errorf("unexpected header fields %v", out)
	}
}

func TestNormalizer_TxObtainedCurrent(t *testing.T) {
	content := "{'hex': '0200', 'inputs': [{'outpoint': 'ab:0', 'scriptSig': '', 'nSequence': 1, 'witness': '02aa'}], " +
		"'outputs': [{'value_sats': 10, 'scriptPubKey': '0014', 'address': 'bc1q'}], 'txid': 'ff'}"
	rec := rawRecord(domain.EventTxObtained, content)
	if !newTestNormalizer().Normalize(rec) {
		t.Fatal("expected success")
	}
	tx := rec.Payload.(*domain.TxObtained)
	if !tx.HasInput("ab:0") || tx.HasInput("ab:1") {
		t.Errorf("unexpected inputs %+v", tx.Inputs)
	}
	if string(tx.Outputs[0].Address) != `"bc1q"` {
		t.Errorf("address = %s", tx.Outputs[0].Address)
	}
	if string(tx.Extra["txid"]) != `"ff"` {
		t.Errorf("passthrough txid = %s", tx.Extra["txid"])
	}
}

func TestNormalizer_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.EventType
		content string
	}{
		{"malformed chosen orders", domain.EventChosenOrders, "{'counterparty': 'J5', 'cjfee': None"},
		{"tx obtained not structured", domain.EventTxObtained, "0200000001abcdef"},
		{"tx obtained bad json", domain.EventTxObtained, "{'ins': [}"},
		{"cj amount without number", domain.EventCJAmount, "cj amount = lots"},
		{"cj fee without number", domain.EventCJFee, "total cj fee = unknown"},
		{"utxo line mismatch", domain.EventUTXOsRemoved, "not a utxo"},
		{"no utxos", domain.EventUTXOsAdded, ""},
		{"earned without sats", domain.EventCJEarned, "potentially earned = ? BTC (ask later)"},
		{"schedule not an array", domain.EventScheduleItem, "schedule item was: [unterminated"},
		{"offer shape", domain.EventFillingOffer, "filling offer for someone"},
		{"confirmation shape", domain.EventTxConfirmed, "tx in a block somewhere"},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := rawRecord(tt.event, tt.content)
			if n.Normalize(rec) {
				t.Fatalf("expected fallback, got payload %+v", rec.Payload)
			}
			if rec.Payload != nil {
				t.Errorf("payload must stay empty, got %+v", rec.Payload)
			}
			if rec.RawContent == nil || *rec.RawContent != tt.content {
				t.Errorf("raw content must be kept, got %v", rec.RawContent)
			}
		})
	}
}

func TestNormalizer_ChosenOrders(t *testing.T) {
	content := "\n{'counterparty': 'J5aaa', 'oid': 0, 'cjfee': '0.00002'}\n{'counterparty': 'J5bbb', 'oid': 3, 'cjfee': 250}"
	rec := rawRecord(domain.EventChosenOrders, content)
	if !newTestNormalizer().Normalize(rec) {
		t.Fatal("expected success")
	}
	orders := rec.Payload.(*domain.ChosenOrders).Orders
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	var second struct {
		Counterparty string `json:"counterparty"`
		OID          int    `json:"oid"`
	}
	if err := json.Unmarshal(orders[1], &second); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	if second.Counterparty != "J5bbb" || second.OID != 3 {
		t.Errorf("unexpected order %+v", second)
	}
}
