package usecase

import (
	"testing"
	"time"

	"github.com/V4T54L/jmlog/internal/domain"
)

func newTestAssembler() *Assembler {
	return NewAssembler(NewClassifier(domain.ModeFull), time.UTC)
}

func TestAssembler_Assemble(t *testing.T) {
	lines := []string{
		"some banner without a timestamp",
		"2023-05-01 10:00:00,123 [INFO]  [joinmarket.yieldgenbot]  starting",
		"orphan continuation",
		"2023-05-01 10:00:01,001 [DEBUG]  [jmclient.wallet_service]  Added utxos=",
		"aaaa:0 - path: m/84'/0'/0'/0/1, address: bc1qx, value: 1000",
		"bbbb:1 - path: m/84'/0'/0'/1/2, address: bc1qy, value: 2000",
		"2023-05-01 10:00:02,500 [INFO]  [jmdaemon]  cj amount = 1000",
		"2023-05-01 10:00:03,000 [INFO]  [jmdaemon]  unrelated event",
		"dropped after reset",
		"2023-05-01 10:00:04,999 [INFO] txid = cafe",
	}

	records := newTestAssembler().Assemble("yg.log", lines)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	added := records[0]
	if added.Type != domain.EventUTXOsAdded {
		t.Errorf("first record type = %q, want utxos_added", added.Type)
	}
	if want := time.Date(2023, 5, 1, 10, 0, 1, 0, time.UTC); !added.Timestamp.Equal(want) {
		t.Errorf("first record timestamp = %v, want %v", added.Timestamp, want)
	}
	if added.SourceFile != "yg.log" {
		t.Errorf("source file = %q, want yg.log", added.SourceFile)
	}
	wantContent := "\naaaa:0 - path: m/84'/0'/0'/0/1, address: bc1qx, value: 1000\nbbbb:1 - path: m/84'/0'/0'/1/2, address: bc1qy, value: 2000"
	if added.Content() != wantContent {
		t.Errorf("content = %q, want %q", added.Content(), wantContent)
	}

	if records[1].Type != domain.EventCJAmount || records[1].Content() != "cj amount = 1000" {
		t.Errorf("second record = %q %q, want cj_amount seeded with payload", records[1].Type, records[1].Content())
	}
	if records[2].Type != domain.EventTxSend || records[2].Content() != "txid = cafe" {
		t.Errorf("continuation after reset leaked into record: %q", records[2].Content())
	}
}

func TestAssembler_TimestampDropsMillis(t *testing.T) {
	records := newTestAssembler().Assemble("a.log", []string{
		"2023-05-01 10:00:00,100 [INFO] txid = aa",
		"2023-05-01 10:00:00,900 [INFO] txid = bb",
	})
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Key() != "2023-05-01T10:00:00.000Z" || records[0].Key() != records[1].Key() {
		t.Errorf("keys = %q, %q; want both 2023-05-01T10:00:00.000Z", records[0].Key(), records[1].Key())
	}
}

func TestAssembler_Location(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	a := NewAssembler(NewClassifier(domain.ModeFull), loc)
	records := a.Assemble("a.log", []string{"2023-05-01 10:00:00,000 [INFO] txid = aa"})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].Key(); got != "2023-05-01T08:00:00.000Z" {
		t.Errorf("key = %q, want UTC conversion 2023-05-01T08:00:00.000Z", got)
	}
}

func TestAssembler_NoTagIsContinuation(t *testing.T) {
	records := newTestAssembler().Assemble("a.log", []string{
		"2023-05-01 10:00:00,000 [INFO] obtained tx",
		"2023-05-01 10:00:01,000 no tag here",
		"{'ins': []}",
	})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	want := "\n2023-05-01 10:00:01,000 no tag here\n{'ins': []}"
	if records[0].Content() != want {
		t.Errorf("content = %q, want %q", records[0].Content(), want)
	}
}
