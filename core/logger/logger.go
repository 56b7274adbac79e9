// Package logger writes a JSON lines audit log of shell sessions.
package logger

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// EventType names the kind of a log record.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventCommand      EventType = "command"
	EventSessionEnd   EventType = "session_end"
)

// Record is a single log entry. One record is written per line.
type Record struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Event     EventType `json:"event"`
	User      string    `json:"user,omitempty"`
	Hostname  string    `json:"hostname,omitempty"`
	Command   string    `json:"command,omitempty"`
	Status    int       `json:"status"`
}

// Logger emits session scoped records to a single writer.
type Logger struct {
	mu        sync.Mutex
	enc       *json.Encoder
	sessionID string
	now       func() time.Time
}

// New creates a logger for one session writing to w.
func New(w io.Writer, sessionID string) *Logger {
	return &Logger{
		enc:       json.NewEncoder(w),
		sessionID: sessionID,
		now:       time.Now,
	}
}

// NewNop creates a logger that discards everything.
func NewNop() *Logger {
	return New(io.Discard, "")
}

// NewSessionID returns a random identifier for a session.
func NewSessionID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}

// Record stamps and writes a single entry.
func (l *Logger) Record(r Record) error {
	r.Time = l.now().UTC()
	r.SessionID = l.sessionID

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(r)
}

// SessionStart records the beginning of a session.
func (l *Logger) SessionStart(user, hostname string) {
	_ = l.Record(Record{Event: EventSessionStart, User: user, Hostname: hostname})
}

// Command records an executed command line and its exit status.
func (l *Logger) Command(line string, status int) {
	_ = l.Record(Record{Event: EventCommand, Command: line, Status: status})
}

// SessionEnd records the end of a session.
func (l *Logger) SessionEnd(status int) {
	_ = l.Record(Record{Event: EventSessionEnd, Status: status})
}
