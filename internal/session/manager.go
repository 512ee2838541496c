// Package session owns the operator's credential lifecycle: acquiring it from
// the backend, persisting it, attaching it to outgoing requests and ending the
// session on expiry or on an authorization-denied response.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/logger"
)

// LoginPath is the credential exchange endpoint.
const LoginPath = "/api/auth/login"

const (
	msgLoginFailed    = "Login failed"
	defaultTimeout    = 10 * time.Second
	maxLoginReplySize = 64 << 10
)

// AuthState is the read-only projection used by route guards.
type AuthState struct {
	IsAuthenticated bool `json:"isAuthenticated"`
	Loading         bool `json:"loading"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReply struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Manager is the single source of truth for whether the operator may view
// protected data and issue commands. It starts in the loading state until
// Init or an explicit Login/Logout determines the session.
type Manager struct {
	store   Store
	baseURL string
	client  *http.Client
	log     *logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	token  string
	state  AuthState
	expiry *time.Timer

	subMu  sync.Mutex
	subs   map[uint64]func(AuthState)
	nextID uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for the login exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = logger.OrNop(l) }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a Manager persisting to store and logging in against the
// backend at baseURL.
func NewManager(store Store, baseURL string, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		log:     logger.Nop(),
		now:     time.Now,
		state:   AuthState{Loading: true},
		subs:    make(map[uint64]func(AuthState)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init performs the one-time initial determination from the persisted
// credential. A JWT credential that has already expired is discarded.
// Calls after the first determination return the current state unchanged.
func (m *Manager) Init(ctx context.Context) AuthState {
	if st := m.State(); !st.Loading {
		return st
	}

	token, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warnw("session_restore_failed", "err", err)
		token = ""
	}
	if token != "" {
		if exp, ok := TokenExpiry(token); ok && !exp.After(m.now()) {
			m.log.Infow("session_restore_expired", "expired_at", exp)
			if err := m.store.Clear(ctx); err != nil {
				m.log.Warnw("session_clear_failed", "err", err)
			}
			token = ""
		}
	}

	m.mu.Lock()
	if !m.state.Loading {
		// Login or Logout won the race; their outcome stands.
		st := m.state
		m.mu.Unlock()
		return st
	}
	m.token = token
	m.state = AuthState{IsAuthenticated: token != "", Loading: false}
	m.armExpiryLocked(token)
	st := m.state
	m.mu.Unlock()

	m.log.Infow("session_initialized", "authenticated", st.IsAuthenticated)
	m.publish(st)
	return st
}

// Login exchanges credentials for a session credential. Failures are returned
// as *apperr.AuthError carrying the backend's message verbatim, or a generic
// message on transport failure. A failed attempt leaves the session as it was.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	token, err := m.exchange(ctx, email, password)
	if err != nil {
		m.log.Warnw("session_login_failed", "email", email, "err", err)
		m.settle()
		return err
	}
	if err := m.store.Save(ctx, token); err != nil {
		m.log.Errorw("session_persist_failed", "err", err)
		m.settle()
		return &apperr.AuthError{Message: msgLoginFailed, Err: err}
	}
	m.adopt(token)
	m.log.Infow("session_login", "email", email)
	return nil
}

// SetCredential adopts a refreshed credential mid-session. The next outgoing
// request carries it.
func (m *Manager) SetCredential(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("empty credential")
	}
	if err := m.store.Save(ctx, token); err != nil {
		return err
	}
	m.adopt(token)
	return nil
}

// Logout clears the persisted credential and unauthenticates. Calling it
// without an active session is a no-op apart from clearing storage.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	changed := m.state.IsAuthenticated || m.state.Loading || m.token != ""
	m.token = ""
	m.state = AuthState{}
	m.stopExpiryLocked()
	st := m.state
	m.mu.Unlock()

	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.log.Warnw("session_clear_failed", "err", err)
	}
	if changed {
		m.log.Infow("session_logout")
		m.publish(st)
	}
}

// State returns the current auth projection.
func (m *Manager) State() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the current credential, or "" when unauthenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Subscribe registers fn for every auth state change and returns the
// cancellation handle. fn runs on the goroutine that caused the change.
func (m *Manager) Subscribe(fn func(AuthState)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// Close stops the expiry timer and drops all subscribers. The persisted
// credential is kept.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopExpiryLocked()
	m.mu.Unlock()

	m.subMu.Lock()
	m.subs = make(map[uint64]func(AuthState))
	m.subMu.Unlock()
}

// expire ends the session after the backend denied a request.
func (m *Manager) expire(ctx context.Context, op string, status int) {
	m.log.Warnw("session_denied", "op", op, "status", status)
	m.Logout(ctx)
}

func (m *Manager) exchange(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", &apperr.AuthError{Message: msgLoginFailed, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+LoginPath, bytes.NewReader(body))
	if err != nil {
		return "", &apperr.AuthError{Message: msgLoginFailed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &apperr.AuthError{
			Message: msgLoginFailed,
			Err:     &apperr.NetworkError{Op: "POST " + LoginPath, Err: err},
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginReplySize))
	if err != nil {
		return "", &apperr.AuthError{
			Message: msgLoginFailed,
			Err:     &apperr.NetworkError{Op: "read login reply", Err: err},
		}
	}

	var reply loginReply
	decodeErr := json.Unmarshal(data, &reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := msgLoginFailed
		if decodeErr == nil {
			if reply.Message != "" {
				msg = reply.Message
			} else if reply.Error != "" {
				msg = reply.Error
			}
		}
		return "", &apperr.AuthError{
			Message: msg,
			Err:     &apperr.StatusError{Code: resp.StatusCode, Message: msg},
		}
	}
	if decodeErr != nil {
		return "", &apperr.AuthError{Message: msgLoginFailed, Err: fmt.Errorf("decode login reply: %w", decodeErr)}
	}
	if reply.Token == "" {
		return "", &apperr.AuthError{Message: msgLoginFailed, Err: errors.New("login reply carried no token")}
	}
	return reply.Token, nil
}

func (m *Manager) adopt(token string) {
	m.mu.Lock()
	m.token = token
	m.state = AuthState{IsAuthenticated: true, Loading: false}
	m.armExpiryLocked(token)
	st := m.state
	m.mu.Unlock()
	m.publish(st)
}

// settle ends the loading phase without changing authentication.
func (m *Manager) settle() {
	m.mu.Lock()
	if !m.state.Loading {
		m.mu.Unlock()
		return
	}
	m.state.Loading = false
	st := m.state
	m.mu.Unlock()
	m.publish(st)
}

func (m *Manager) armExpiryLocked(token string) {
	m.stopExpiryLocked()
	exp, ok := TokenExpiry(token)
	if !ok {
		return
	}
	m.expiry = time.AfterFunc(exp.Sub(m.now()), func() {
		if m.Token() != token {
			return
		}
		m.log.Infow("session_expired", "expired_at", exp)
		m.Logout(context.Background())
	})
}

func (m *Manager) stopExpiryLocked() {
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
}

func (m *Manager) publish(st AuthState) {
	m.subMu.Lock()
	fns := make([]func(AuthState), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
