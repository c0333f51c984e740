package domain

import (
	"bytes"
	"encoding/json"
)

// SessionMap groups records by session key and remembers key insertion order.
type SessionMap struct {
	keys     []string
	sessions map[string][]*LogRecord
}

// NewSessionMap returns an empty SessionMap.
func NewSessionMap() *SessionMap {
	return &SessionMap{sessions: make(map[string][]*LogRecord)}
}

// Append adds a record to the session under key, creating the session if needed.
func (m *SessionMap) Append(key string, rec *LogRecord) {
	if _, ok := m.sessions[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.sessions[key] = append(m.sessions[key], rec)
}

// Keys returns the session keys in insertion order.
func (m *SessionMap) Keys() []string {
	return m.keys
}

// Get returns the records of a session.
func (m *SessionMap) Get(key string) []*LogRecord {
	return m.sessions[key]
}

// Len returns the number of sessions.
func (m *SessionMap) Len() int {
	return len(m.keys)
}

// Find returns the first key, in insertion order, whose session satisfies pred.
func (m *SessionMap) Find(pred func(records []*LogRecord) bool) (string, bool) {
	for _, key := range m.keys {
		if pred(m.sessions[key]) {
			return key, true
		}
	}
	return "", false
}

// MarshalJSON writes the sessions as one object with keys in insertion order.
func (m *SessionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		records, err := json.Marshal(m.sessions[key])
		if err != nil {
			return nil, err
		}
		buf.Write(records)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FindType returns the first record of the given type in a session.
func FindType(records []*LogRecord, t EventType) *LogRecord {
	for _, r := range records {
		if r.Type == t {
			return r
		}
	}
	return nil
}

// HasType reports whether a session holds a record of the given type.
func HasType(records []*LogRecord, t EventType) bool {
	return FindType(records, t) != nil
}
