package commands

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
	"telegram-bot-core/internal/usecase"
)

const (
	userID int64 = 7
	chatID int64 = 70
)

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMessenger) SendText(_ context.Context, _ int64, text string) domain.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return domain.Delivery{OK: true, MessageID: len(f.sent)}
}

func (f *fakeMessenger) DeleteMessage(context.Context, int64, int) domain.DeleteResult {
	return domain.DeleteResult{Success: true}
}

func (f *fakeMessenger) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type memSessions struct {
	byUser  map[int64]domain.Session
	saveErr error
}

func (m *memSessions) Load(_ context.Context, id int64, restart bool) domain.Session {
	s, ok := m.byUser[id]
	if restart || !ok {
		return domain.NewSession()
	}
	out := s
	out.Data = map[string]any{}
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return out
}

func (m *memSessions) Save(_ context.Context, id int64, s domain.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.byUser[id] = s
	return nil
}

type failingTables struct {
	err error
}

func (f failingTables) Insert(context.Context, []string, tablestore.Descriptor) (string, error) {
	return "", f.err
}

func (f failingTables) Update(context.Context, []string, string, tablestore.Descriptor) (int64, error) {
	return 0, f.err
}

type harness struct {
	sessions *memSessions
	msgs     *fakeMessenger
	store    *tablestore.Store
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := tablestore.Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		sessions: &memSessions{byUser: map[int64]domain.Session{}},
		msgs:     &fakeMessenger{},
		store:    store,
	}
	h.deps = Deps{Sessions: h.sessions, Tables: store, Messenger: h.msgs}
	return h
}

func (h *harness) send(t *testing.T, handler usecase.Handler, text string) *usecase.Result {
	t.Helper()
	res, err := handler.Handle(context.Background(), usecase.Request{
		Session: h.sessions.Load(context.Background(), userID, false),
		Inbound: domain.Inbound{ChatID: chatID, UserID: userID, UserName: "Ana", Text: text},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func (h *harness) session() domain.Session {
	return h.sessions.Load(context.Background(), userID, false)
}

func TestDeps_Validation(t *testing.T) {
	h := newHarness(t)
	for _, d := range []Deps{
		{Tables: h.store, Messenger: h.msgs},
		{Sessions: h.sessions, Messenger: h.msgs},
		{Sessions: h.sessions, Tables: h.store},
	} {
		_, err := NewCatalog(d)
		require.Error(t, err)
		_, err = NewLinksfera(d)
		require.Error(t, err)
		_, err = All(d)
		require.Error(t, err)
	}
}

func TestAll_MenuOrder(t *testing.T) {
	h := newHarness(t)
	cmds, err := All(h.deps)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	require.Equal(t, NameLinksfera, cmds[0].Name)
	require.Equal(t, NameCatalog, cmds[1].Name)

	reg, err := usecase.NewRegistry(cmds...)
	require.NoError(t, err)
	require.Equal(t, []string{"linksfera", "catalogo"}, reg.Names())
}

func TestCatalog_FullFlow(t *testing.T) {
	h := newHarness(t)
	c, err := NewCatalog(h.deps)
	require.NoError(t, err)
	ctx := context.Background()

	h.send(t, c, "/catalogo")
	require.Equal(t, NameCatalog, h.session().Process)
	require.Equal(t, catalogAskTitle, h.session().State)

	h.send(t, c, "  ")
	require.Equal(t, msgCatalogEmpty, h.msgs.last())
	require.Equal(t, catalogAskTitle, h.session().State)

	h.send(t, c, "Camiseta <azul>")
	h.send(t, c, "Algodão, tamanho M")
	h.send(t, c, "quarenta")
	require.Equal(t, msgCatalogBadPrice, h.msgs.last())
	require.Equal(t, catalogAskPrice, h.session().State)

	h.send(t, c, "R$ 49,9")
	require.Equal(t, catalogConfirm, h.session().State)
	require.Contains(t, h.msgs.last(), "<b>Título:</b> Camiseta &lt;azul&gt;")
	require.Contains(t, h.msgs.last(), "R$ 49,90")

	res := h.send(t, c, "talvez")
	require.Equal(t, statusBadAnswer, res.Status)
	require.Equal(t, msgAskConfirm, h.msgs.last())
	require.Empty(t, h.store.Read(ctx, tablestore.Catalog.Table(), nil))

	res = h.send(t, c, "/SIM")
	require.Equal(t, statusSaved, res.Status)
	require.Equal(t, "Deseja /encerrar ? ou /catalogo ?", h.msgs.last())
	require.Equal(t, domain.NewSession(), h.session())

	row, ok := h.store.Read(ctx, tablestore.Catalog.Table(), nil).One()
	require.True(t, ok)
	require.Equal(t, NameCatalog, row["type"])
	var item CatalogItem
	require.NoError(t, json.Unmarshal([]byte(row["data"]), &item))
	require.Equal(t, CatalogItem{Title: "Camiseta <azul>", Description: "Algodão, tamanho M", Price: "49.90"}, item)
}

func TestCatalog_NoDiscards(t *testing.T) {
	h := newHarness(t)
	c, err := NewCatalog(h.deps)
	require.NoError(t, err)

	for _, text := range []string{"catalogo", "Caneca", "Branca", "25"} {
		h.send(t, c, text)
	}
	res := h.send(t, c, "/não")
	require.Equal(t, statusDiscarded, res.Status)
	require.True(t, h.session().Idle())
	require.Empty(t, h.store.Read(context.Background(), tablestore.Catalog.Table(), nil))
}

func TestCatalog_CommandNameRestarts(t *testing.T) {
	h := newHarness(t)
	c, err := NewCatalog(h.deps)
	require.NoError(t, err)

	h.send(t, c, "catalogo")
	h.send(t, c, "Caneca")
	require.Equal(t, catalogAskDescription, h.session().State)

	h.send(t, c, "/Catálogo")
	require.Equal(t, catalogAskTitle, h.session().State)
	require.Empty(t, h.session().Data)
}

func TestCatalog_SaveFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.sessions.saveErr = errors.New("throttled")
	c, err := NewCatalog(h.deps)
	require.NoError(t, err)

	_, err = c.Handle(context.Background(), usecase.Request{
		Session: domain.NewSession(),
		Inbound: domain.Inbound{ChatID: chatID, UserID: userID, Text: "catalogo"},
	})
	require.Error(t, err)
}

func TestLinksfera_InsertThenUpdate(t *testing.T) {
	h := newHarness(t)
	l, err := NewLinksfera(h.deps)
	require.NoError(t, err)
	ctx := context.Background()

	h.send(t, l, "linksfera")
	require.Contains(t, h.msgs.last(), "/instagram\n/whatsapp")

	h.send(t, l, "/orkut")
	require.Contains(t, h.msgs.last(), msgLinksBadKind)
	require.Equal(t, linksAskKind, h.session().State)

	h.send(t, l, "/Instagram")
	require.Equal(t, "instagram", h.session().Data["kind"])
	h.send(t, l, "ftp://example.com")
	require.Equal(t, msgLinksBadURL, h.msgs.last())
	h.send(t, l, "https://instagram.com/loja")
	res := h.send(t, l, "/sim")
	require.Equal(t, statusSaved, res.Status)
	require.Equal(t, "Deseja /encerrar ? ou /linksfera ?", h.msgs.last())

	for _, text := range []string{"linksfera", "instagram", "https://instagram.com/loja2", "/SIM"} {
		res = h.send(t, l, text)
	}
	require.Equal(t, statusUpdated, res.Status)

	rows := h.store.Read(ctx, tablestore.Config.Table(), nil)
	require.Len(t, rows, 1)
	require.Equal(t, "https://instagram.com/loja2", rows[0]["data"])
	require.Equal(t, "instagram", rows[0]["type"])

	for _, text := range []string{"linksfera", "site", "http://loja.example", "SIM"} {
		h.send(t, l, text)
	}
	require.Len(t, h.store.Read(ctx, tablestore.Config.Table(), nil), 2)
}

func TestConfirm_PersistFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.deps.Tables = failingTables{err: domain.NewError(domain.KindIO, "tablestore: Insert", "insert_failed", errors.New("disk full"))}
	l, err := NewLinksfera(h.deps)
	require.NoError(t, err)

	for _, text := range []string{"linksfera", "site", "https://loja.example"} {
		h.send(t, l, text)
	}
	res := h.send(t, l, "/SIM")
	require.Equal(t, statusSaveError, res.Status)
	require.Contains(t, h.msgs.last(), "Erro ao salvar dados: ")
	require.Contains(t, h.msgs.last(), "disk full")
	require.Equal(t, linksConfirm, h.session().State)
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"49,90", "49.90", true},
		{"49.9", "49.90", true},
		{"R$ 1.234,5", "1234.50", true},
		{" 10 ", "10.00", true},
		{"0", "", false},
		{"-3", "", false},
		{"abc", "", false},
		{"Inf", "", false},
		{"NaN", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParsePrice(tc.in)
		require.Equal(t, tc.ok, ok, "in=%q", tc.in)
		require.Equal(t, tc.want, got, "in=%q", tc.in)
	}
}

func TestParseLink(t *testing.T) {
	for _, good := range []string{"https://example.com", " http://example.com/a?b=c "} {
		_, ok := parseLink(good)
		require.True(t, ok, good)
	}
	for _, bad := range []string{"example.com", "ftp://example.com", "https://", "javascript:alert(1)", ""} {
		_, ok := parseLink(bad)
		require.False(t, ok, bad)
	}
}
