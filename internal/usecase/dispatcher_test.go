package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"telegram-bot-core/internal/domain"
)

func okHandler(status string) Handler {
	return HandlerFunc(func(context.Context, Request) (*Result, error) {
		return &Result{Status: status}, nil
	})
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(Command{Name: " ", Handler: okHandler("x")})
	require.Error(t, err)

	_, err = NewRegistry(Command{Name: "catalogo"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no handler")

	_, err = NewRegistry(
		Command{Name: "catalogo", Handler: okHandler("a")},
		Command{Name: "/Catálogo", Handler: okHandler("b")},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestRegistry_Match(t *testing.T) {
	reg, err := NewRegistry(
		Command{Name: "linksfera", Handler: okHandler("l")},
		Command{Name: "catalogo", Handler: okHandler("c")},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"linksfera", "catalogo"}, reg.Names())

	cases := []struct {
		text, process, want string
	}{
		{"catalogo", "", "catalogo"},
		{"/Catálogo", "", "catalogo"},
		{"/LINKSFERA", "", "linksfera"},
		{"some title", "catalogo", "catalogo"},
		{"/linksfera", "catalogo", "linksfera"},
	}
	for _, tc := range cases {
		cmd, ok := reg.Match(tc.text, tc.process)
		require.True(t, ok, "text=%q process=%q", tc.text, tc.process)
		require.Equal(t, tc.want, cmd.Name)
	}

	_, ok := reg.Match("hello", "")
	require.False(t, ok)
	_, ok = reg.Match("", "")
	require.False(t, ok)
	_, ok = reg.Match("hello", "register_masterUser")
	require.False(t, ok)
}

func newTestDispatcher(t *testing.T, m *fakeMessenger, timeout time.Duration, cmds ...Command) *Dispatcher {
	t.Helper()
	reg, err := NewRegistry(cmds...)
	require.NoError(t, err)
	d, err := NewDispatcher(reg, m, timeout, nil)
	require.NoError(t, err)
	return d
}

func TestNewDispatcher_Validation(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = NewDispatcher(nil, &fakeMessenger{}, time.Second, nil)
	require.Error(t, err)
	_, err = NewDispatcher(reg, nil, time.Second, nil)
	require.Error(t, err)

	d, err := NewDispatcher(reg, &fakeMessenger{}, 0, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultCommandTimeout, d.timeout)
}

func TestDispatch_Unrecognized(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, time.Second, Command{Name: "catalogo", Handler: okHandler("c")})

	res, err := d.Dispatch(context.Background(), Request{
		Session: domain.NewSession(),
		Inbound: domain.Inbound{ChatID: 9, Text: "<b>oi</b>"},
	})
	require.NoError(t, err)
	require.Nil(t, res)
	require.Equal(t, []string{`Comando "&lt;b&gt;oi&lt;/b&gt;" não reconhecido. Use /comandos para ver a lista de comandos disponíveis.`}, m.texts())
}

func TestDispatch_RoutesBySessionProcess(t *testing.T) {
	var got Request
	h := HandlerFunc(func(_ context.Context, req Request) (*Result, error) {
		got = req
		return &Result{Status: "step"}, nil
	})
	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, time.Second, Command{Name: "catalogo", Handler: h})

	sess := domain.NewSession()
	sess.Process = "catalogo"
	sess.State = "ask_price"
	res, err := d.Dispatch(context.Background(), Request{Session: sess, Inbound: domain.Inbound{Text: "12,50"}})
	require.NoError(t, err)
	require.Equal(t, "step", res.Status)
	require.Equal(t, "ask_price", got.Session.State)
	require.Equal(t, "12,50", got.Inbound.Text)
	require.Empty(t, m.texts())
}

func TestDispatch_HandlerErrorIsReported(t *testing.T) {
	boom := errors.New("boom")
	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, time.Second, Command{Name: "catalogo", Handler: HandlerFunc(
		func(context.Context, Request) (*Result, error) { return nil, boom },
	)})

	res, err := d.Dispatch(context.Background(), Request{Inbound: domain.Inbound{Text: "catalogo"}})
	require.ErrorIs(t, err, boom)
	require.Nil(t, res)
	require.Equal(t, `Ocorreu um erro ao executar o comando "catalogo". Tente novamente mais tarde.`, m.last())
}

func TestDispatch_HandlerPanicIsRecovered(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, time.Second, Command{Name: "catalogo", Handler: HandlerFunc(
		func(context.Context, Request) (*Result, error) { panic("nil map") },
	)})

	_, err := d.Dispatch(context.Background(), Request{Inbound: domain.Inbound{Text: "catalogo"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "panicked")
	require.Contains(t, m.last(), "Ocorreu um erro")
}

func TestDispatch_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	sawCancel := make(chan struct{})

	h := HandlerFunc(func(ctx context.Context, _ Request) (*Result, error) {
		<-ctx.Done()
		close(sawCancel)
		<-release
		return &Result{Status: "late"}, nil
	})
	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, 20*time.Millisecond, Command{Name: "catalogo", Handler: h})

	start := time.Now()
	res, err := d.Dispatch(context.Background(), Request{Inbound: domain.Inbound{Text: "catalogo"}})
	require.Nil(t, res)
	require.True(t, domain.IsKind(err, domain.KindTimeout))
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, `Tempo limite de execução do comando "catalogo" excedido.`, m.last())

	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Fatal("handler context was not cancelled")
	}
}

func TestDispatch_ParentCancelled(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, _ Request) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := &fakeMessenger{}
	d := newTestDispatcher(t, m, time.Minute, Command{Name: "catalogo", Handler: h})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Dispatch(ctx, Request{Inbound: domain.Inbound{Text: "catalogo"}})
	require.Error(t, err)
}
