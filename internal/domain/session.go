package domain

import "fmt"

// Session is the per-user conversational state persisted between webhook calls.
// Process names the active multi-step flow (empty means idle) and State is the
// step inside it, compared case-insensitively.
type Session struct {
	Process      string         `json:"process"`
	State        string         `json:"state"`
	Title        string         `json:"title"`
	Text         string         `json:"text"`
	Data         map[string]any `json:"data"`
	List         []string       `json:"list"`
	AttemptCount int            `json:"attemptCount"`
}

// NewSession returns the idle defaults handed to a user never seen before.
func NewSession() Session {
	return Session{
		Data: map[string]any{},
		List: []string{},
	}
}

// DataString returns the scratch value under key as text. Missing keys read
// as "" and non-string values use their default formatting.
func (s Session) DataString(key string) string {
	switch v := s.Data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Idle reports whether no flow is in progress.
func (s Session) Idle() bool {
	return s.Process == ""
}

// Inbound is the normalized view of one platform update.
type Inbound struct {
	ChatID   int64
	UserID   int64
	UserName string
	// Text holds the message text, or the file id when the message carries media.
	Text string
}
