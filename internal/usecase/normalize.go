package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/V4T54L/jmlog/internal/domain"
)

var (
	cjAmountRe      = regexp.MustCompile(`cj amount = (\d+)`)
	cjFeeRe         = regexp.MustCompile(` = (.*)`)
	txSendRe        = regexp.MustCompile(`txid = (\w+)`)
	fillingOfferRe  = regexp.MustCompile(`filling offer, mixdepth=(\d+), amount=(\d+)`)
	sendingOutputRe = regexp.MustCompile(`sending output to address=(\w+)`)
	cjInfoRe        = regexp.MustCompile(`mycjaddr, mychange = (\w+), (\w+)`)
	utxoLineRe      = regexp.MustCompile(`(\w+):(\d+) - path: (.*), address: (.*), value: (\d+)`)
	earnedPrefixRe  = regexp.MustCompile(`.* BTC \(`)
	scheduleRe      = regexp.MustCompile(`schedule item was: (\[.*\])`)
	txConfirmedRe   = regexp.MustCompile(`tx in a block: (\w+) with (\d+) confirmations`)
	// Any character followed by "{" separates two logged order objects.
	orderSepRe = regexp.MustCompile(`(?s).\{`)
)

// fieldParser extracts the typed payload of one event type from trimmed content.
// It returns domain.ErrNoMatch when the content has an unexpected shape and a
// decode error when structured content could not be deserialized.
type fieldParser func(content string) (domain.Payload, error)

var fieldParsers = map[domain.EventType]fieldParser{
	domain.EventChosenOrders:  parseChosenOrders,
	domain.EventCJAmount:      parseCJAmount,
	domain.EventCJFee:         parseCJFee,
	domain.EventTxObtained:    parseTxObtained,
	domain.EventTxSend:        parseTxSend,
	domain.EventFillingOffer:  parseFillingOffer,
	domain.EventSendingOutput: parseSendingOutput,
	domain.EventCJInfo:        parseCJInfo,
	domain.EventUTXOsAdded:    parseUTXOs,
	domain.EventUTXOsRemoved:  parseUTXOs,
	domain.EventCJEarned:      parseCJEarned,
	domain.EventScheduleItem:  parseScheduleItem,
	domain.EventTxConfirmed:   parseTxConfirmed,
}

// Normalizer merges per-file records and parses their content into typed fields.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With("component", "normalizer")}
}

// Merge concatenates the per-file sequences and sorts them by timestamp.
// Records with equal timestamps keep their input order.
func (n *Normalizer) Merge(perFile [][]*domain.LogRecord) []*domain.LogRecord {
	var total int
	for _, recs := range perFile {
		total += len(recs)
	}
	merged := make([]*domain.LogRecord, 0, total)
	for _, recs := range perFile {
		merged = append(merged, recs...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

// Normalize parses the record's content in place. It reports false when the
// record kept its raw content because extraction failed.
func (n *Normalizer) Normalize(rec *domain.LogRecord) bool {
	content := strings.TrimSpace(rec.Content())
	parse, ok := fieldParsers[rec.Type]
	if !ok {
		rec.RawContent = &content
		return true
	}

	payload, err := parse(content)
	if err != nil {
		if errors.Is(err, domain.ErrNoMatch) {
			n.logger.Debug("content not extracted, keeping raw content", "type", rec.Type, "file", rec.SourceFile, "date", rec.Key())
		} else {
			n.logger.Warn("failed to decode record content", "error", err, "type", rec.Type, "file", rec.SourceFile, "date", rec.Key(), "content", content)
		}
		return false
	}
	rec.Payload = payload
	rec.RawContent = nil
	return true
}

func parseChosenOrders(content string) (domain.Payload, error) {
	s := strings.ReplaceAll(content, "'", `"`)
	s = "[" + orderSepRe.ReplaceAllString(s, ",{") + "]"
	var orders []json.RawMessage
	if err := json.Unmarshal([]byte(s), &orders); err != nil {
		return nil, fmt.Errorf("decode chosen orders: %w", err)
	}
	return &domain.ChosenOrders{Orders: orders}, nil
}

func parseCJAmount(content string) (domain.Payload, error) {
	m := cjAmountRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, domain.ErrNoMatch
	}
	return &domain.CJAmount{AmountSats: amount}, nil
}

func parseCJFee(content string) (domain.Payload, error) {
	m := cjFeeRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	if strings.HasSuffix(m[1], "%") {
		return &domain.CJFee{FeePercent: m[1]}, nil
	}
	fee, ok := leadingInt(m[1])
	if !ok {
		return nil, domain.ErrNoMatch
	}
	return &domain.CJFee{FeeSats: &fee}, nil
}

type legacyInput struct {
	Outpoint struct {
		Hash  string      `json:"hash"`
		Index json.Number `json:"index"`
	} `json:"outpoint"`
	Script   json.RawMessage `json:"script"`
	Sequence json.RawMessage `json:"sequence"`
}

type legacyOutput struct {
	Value  json.RawMessage `json:"value"`
	Script json.RawMessage `json:"script"`
}

func parseTxObtained(content string) (domain.Payload, error) {
	if !strings.HasPrefix(content, "[") && !strings.HasPrefix(content, "{") {
		return nil, domain.ErrNoMatch
	}
	data := []byte(strings.ReplaceAll(content, "'", `"`))

	tx := &domain.TxObtained{Extra: make(map[string]json.RawMessage)}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		for i, item := range items {
			tx.Extra[strconv.Itoa(i)] = item
		}
		return tx, nil
	}

	if err := json.Unmarshal(data, &tx.Extra); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if raw, ok := tx.Extra["inputs"]; ok {
		if err := json.Unmarshal(raw, &tx.Inputs); err != nil {
			return nil, fmt.Errorf("decode transaction inputs: %w", err)
		}
		delete(tx.Extra, "inputs")
	}
	if raw, ok := tx.Extra["outputs"]; ok {
		if err := json.Unmarshal(raw, &tx.Outputs); err != nil {
			return nil, fmt.Errorf("decode transaction outputs: %w", err)
		}
		delete(tx.Extra, "outputs")
	}

	// Older clients log "ins"/"outs" with nested outpoints.
	if raw, ok := tx.Extra["ins"]; ok {
		var ins []legacyInput
		if err := json.Unmarshal(raw, &ins); err != nil {
			return nil, fmt.Errorf("decode legacy transaction inputs: %w", err)
		}
		tx.Inputs = make([]domain.TxInput, 0, len(ins))
		for _, in := range ins {
			tx.Inputs = append(tx.Inputs, domain.TxInput{
				Outpoint:  in.Outpoint.Hash + ":" + in.Outpoint.Index.String(),
				ScriptSig: in.Script,
				NSequence: in.Sequence,
			})
		}
		delete(tx.Extra, "ins")
	}
	if raw, ok := tx.Extra["outs"]; ok {
		var outs []legacyOutput
		if err := json.Unmarshal(raw, &outs); err != nil {
			return nil, fmt.Errorf("decode legacy transaction outputs: %w", err)
		}
		tx.Outputs = make([]domain.TxOutput, 0, len(outs))
		for _, out := range outs {
			tx.Outputs = append(tx.Outputs, domain.TxOutput{
				ValueSats:    out.Value,
				ScriptPubKey: out.Script,
			})
		}
		delete(tx.Extra, "outs")
	}
	return tx, nil
}

func parseTxSend(content string) (domain.Payload, error) {
	m := txSendRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	return &domain.TxSend{TxID: m[1]}, nil
}

func parseFillingOffer(content string) (domain.Payload, error) {
	m := fillingOfferRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	mixdepth, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, domain.ErrNoMatch
	}
	amount, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, domain.ErrNoMatch
	}
	return &domain.FillingOffer{Mixdepth: mixdepth, AmountSats: amount}, nil
}

func parseSendingOutput(content string) (domain.Payload, error) {
	m := sendingOutputRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	return &domain.SendingOutput{ToAddress: m[1]}, nil
}

func parseCJInfo(content string) (domain.Payload, error) {
	m := cjInfoRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	return &domain.CJInfo{CJAddr: m[1], Change: m[2]}, nil
}

func parseUTXOs(content string) (domain.Payload, error) {
	var utxos []domain.UTXO
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := utxoLineRe.FindStringSubmatch(line)
		if m == nil {
			return nil, domain.ErrNoMatch
		}
		value, err := strconv.ParseInt(m[5], 10, 64)
		if err != nil {
			return nil, domain.ErrNoMatch
		}
		utxos = append(utxos, domain.UTXO{
			Outpoint: m[1] + ":" + m[2],
			Path:     m[3],
			Address:  strings.TrimSpace(m[4]),
			Value:    value,
		})
	}
	if len(utxos) == 0 {
		return nil, domain.ErrNoMatch
	}
	return &domain.UTXOSet{UTXOs: utxos}, nil
}

func parseCJEarned(content string) (domain.Payload, error) {
	s := strings.Replace(content, "potentially earned = ", "", 1)
	if loc := earnedPrefixRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]] + s[loc[1]:]
	}
	sats, ok := leadingInt(s)
	if !ok {
		return nil, domain.ErrNoMatch
	}
	return &domain.CJEarned{Sats: sats}, nil
}

func parseScheduleItem(content string) (domain.Payload, error) {
	m := scheduleRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	var p fastjson.Parser
	v, err := p.Parse(strings.ReplaceAll(m[1], "'", `"`))
	if err != nil {
		return nil, fmt.Errorf("decode schedule item: %w", err)
	}
	fields, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("decode schedule item: %w", err)
	}

	at := func(i int) json.RawMessage {
		if i >= len(fields) {
			return nil
		}
		return json.RawMessage(fields[i].MarshalTo(nil))
	}
	item := &domain.ScheduleItem{
		AmountSats:     at(1),
		Counterparties: at(2),
		ToAddress:      at(3),
	}
	if len(fields) > 0 && fields[0].Type() == fastjson.TypeNumber {
		if md, err := fields[0].Int(); err == nil {
			item.Mixdepth = &md
		}
	}
	return item, nil
}

func parseTxConfirmed(content string) (domain.Payload, error) {
	m := txConfirmedRe.FindStringSubmatch(content)
	if m == nil {
		return nil, domain.ErrNoMatch
	}
	confirmations, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, domain.ErrNoMatch
	}
	return &domain.TxConfirmed{Block: m[1], Confirmations: confirmations}, nil
}

// leadingInt parses the integer prefix of s, ignoring leading whitespace.
func leadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
