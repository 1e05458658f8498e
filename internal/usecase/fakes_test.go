package usecase

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	deleted []int
	nextID  int
	failAll bool
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string) domain.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	if f.failAll {
		return domain.Delivery{Description: "Forbidden: bot was blocked by the user"}
	}
	f.nextID++
	return domain.Delivery{OK: true, MessageID: f.nextID}
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) domain.DeleteResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return domain.DeleteResult{Success: true}
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.text
	}
	return out
}

func (f *fakeMessenger) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type fakeSessions struct {
	mu      sync.Mutex
	byUser  map[int64]domain.Session
	saves   int
	saveErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byUser: map[int64]domain.Session{}}
}

func cloneSession(s domain.Session) domain.Session {
	s.Data = maps.Clone(s.Data)
	s.List = slices.Clone(s.List)
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	if s.List == nil {
		s.List = []string{}
	}
	return s
}

func (f *fakeSessions) Load(_ context.Context, userID int64, restart bool) domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byUser[userID]
	if restart || !ok {
		return domain.NewSession()
	}
	return cloneSession(s)
}

func (f *fakeSessions) Save(_ context.Context, userID int64, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return domain.NewError(domain.KindIO, "repository: Save", "dynamodb_put", f.saveErr)
	}
	f.byUser[userID] = cloneSession(s)
	return nil
}

func (f *fakeSessions) get(userID int64) domain.Session {
	return f.Load(context.Background(), userID, false)
}

type fakeUsers struct {
	mu        sync.Mutex
	master    bool
	chats     map[string]bool
	inserted  [][]string
	insertErr error
}

func (f *fakeUsers) Exists(_ context.Context, t tablestore.Table, filter tablestore.Filter) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t != tablestore.Users.Table() {
		return false
	}
	if _, ok := filter[tablestore.ColTipo]; ok {
		return f.master
	}
	chat, _ := filter[tablestore.ColChatID].(string)
	return f.chats[chat]
}

func (f *fakeUsers) Insert(_ context.Context, values []string, d tablestore.Descriptor) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	if d.Table() != tablestore.Users.Table() {
		return "", errors.New("unexpected table " + d.Table().Name())
	}
	f.inserted = append(f.inserted, slices.Clone(values))
	return "1", nil
}
