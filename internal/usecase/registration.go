package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"telegram-bot-core/internal/credential"
	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/tablestore"
)

// Registration flow identifiers as stored in the session.
const (
	ProcessRegisterMaster = "register_masterUser"

	StateRegisterCredentials = "register_credentials_master_user"
	StateRegisterPIN         = "register_pin_user"
	StateRegisterConfirm     = "register_confirm_user"
)

const (
	minPINLength            = 6
	maxConfirmAttempts      = 3
	DefaultOneTimeCodeTTL   = 15 * time.Second
	statusRegistrationStep  = "OK"
	statusRegistrationReset = "Registro reiniciado"
	statusRegistrationDone  = "Usuário MASTER criado"
)

// Registration walks the first user through choosing and confirming a PIN and
// stores them as the MASTER user.
type Registration struct {
	sessions   SessionReadWriter
	users      UserTable
	messenger  Messenger
	iterations int
	codeTTL    time.Duration
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

type RegistrationOption func(*Registration)

// WithIterations sets the PBKDF2 iteration count. Values under
// credential.MinIterations make hashing fail.
func WithIterations(n int) RegistrationOption {
	return func(r *Registration) {
		r.iterations = n
	}
}

// WithOneTimeCodeTTL sets how long the recovery code message stays visible.
func WithOneTimeCodeTTL(d time.Duration) RegistrationOption {
	return func(r *Registration) {
		r.codeTTL = d
	}
}

func WithRegistrationLogger(logger *slog.Logger) RegistrationOption {
	return func(r *Registration) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistration(s SessionReadWriter, u UserTable, m Messenger, opts ...RegistrationOption) (*Registration, error) {
	if s == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if u == nil {
		return nil, errors.New("usecase: user table must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	r := &Registration{
		sessions:   s,
		users:      u,
		messenger:  m,
		iterations: credential.DefaultIterations,
		codeTTL:    DefaultOneTimeCodeTTL,
		logger:     slog.Default(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registration")
	return r, nil
}

// Handle advances the registration flow by one message. A session busy with
// another process is restarted into registration.
func (r *Registration) Handle(ctx context.Context, req Request) (*Result, error) {
	s := req.Session
	if s.Process != ProcessRegisterMaster {
		s = domain.NewSession()
		s.Process = ProcessRegisterMaster
		s.State = StateRegisterCredentials
	}

	switch strings.ToLower(s.State) {
	case StateRegisterPIN:
		return r.choosePIN(ctx, req.Inbound, s)
	case StateRegisterConfirm:
		return r.confirmPIN(ctx, req.Inbound, s)
	default:
		return r.greet(ctx, req.Inbound, s)
	}
}

func (r *Registration) greet(ctx context.Context, in domain.Inbound, s domain.Session) (*Result, error) {
	s.State = StateRegisterPIN
	s.AttemptCount = 0
	if err := r.sessions.Save(ctx, in.UserID, s); err != nil {
		return nil, err
	}
	r.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgRegisterGreeting, html.EscapeString(in.UserName), minPINLength))
	return &Result{Status: statusRegistrationStep}, nil
}

func (r *Registration) choosePIN(ctx context.Context, in domain.Inbound, s domain.Session) (*Result, error) {
	name := html.EscapeString(in.UserName)
	if n := utf8.RuneCountInString(in.Text); n < minPINLength {
		r.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgRegisterShortPIN, name, minPINLength, n))
		return &Result{Status: statusRegistrationStep}, nil
	}

	hashed, err := credential.HashSecret(in.Text, r.iterations)
	if err != nil {
		return nil, err
	}
	s.Text = hashed
	s.State = StateRegisterConfirm
	s.AttemptCount = 0
	if err := r.sessions.Save(ctx, in.UserID, s); err != nil {
		return nil, err
	}
	r.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgRegisterConfirm, name))
	return &Result{Status: statusRegistrationStep}, nil
}

func (r *Registration) confirmPIN(ctx context.Context, in domain.Inbound, s domain.Session) (*Result, error) {
	name := html.EscapeString(in.UserName)
	if s.AttemptCount >= maxConfirmAttempts {
		return r.strikeOut(ctx, in)
	}

	if !credential.VerifySecret(in.Text, s.Text, r.iterations) {
		s.AttemptCount++
		if s.AttemptCount >= maxConfirmAttempts {
			return r.strikeOut(ctx, in)
		}
		if err := r.sessions.Save(ctx, in.UserID, s); err != nil {
			return nil, err
		}
		r.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgRegisterMismatch, name))
		return &Result{Status: statusRegistrationStep}, nil
	}

	chatID := strconv.FormatInt(in.ChatID, 10)
	userData, err := credential.HashSecret(strconv.FormatInt(in.UserID, 10)+chatID+in.Text, r.iterations)
	if err != nil {
		return nil, err
	}
	code, err := credential.GenerateOneTimeCode()
	if err != nil {
		return nil, err
	}

	notice := r.messenger.SendText(ctx, in.ChatID,
		fmt.Sprintf(msgRegisterPUK, html.EscapeString(code), int(r.codeTTL/time.Second)))

	status := statusRegistrationDone
	if _, err := r.users.Insert(ctx, []string{userData, chatID, tablestore.RoleMaster}, tablestore.Users); err != nil {
		r.logger.ErrorContext(ctx, "master user insert failed", "user_id", in.UserID, "err", err)
		r.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgRegisterDBFailure, html.EscapeString(err.Error())))
		status = statusRegistrationReset
	} else {
		r.logger.InfoContext(ctx, "master user created", "user_id", in.UserID)
		r.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgRegisterSuccess, name))
	}

	saveErr := r.sessions.Save(ctx, in.UserID, domain.NewSession())

	if notice.OK {
		if err := r.sleep(ctx, r.codeTTL); err != nil {
			r.logger.WarnContext(ctx, "one-time code wait interrupted", "err", err)
		}
		r.messenger.DeleteMessage(context.WithoutCancel(ctx), in.ChatID, notice.MessageID)
	}
	if saveErr != nil {
		return nil, saveErr
	}
	return &Result{Status: status}, nil
}

// strikeOut resets the session after too many failed confirmations.
func (r *Registration) strikeOut(ctx context.Context, in domain.Inbound) (*Result, error) {
	if err := r.sessions.Save(ctx, in.UserID, domain.NewSession()); err != nil {
		return nil, err
	}
	r.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgRegisterStrikes, maxConfirmAttempts))
	return &Result{Status: statusRegistrationReset}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
