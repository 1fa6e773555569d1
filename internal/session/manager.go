// Package session keeps one authenticated vendor-portal session per source.
// Login is form-based with an optional mailbox verification code; the cookie
// jar is persisted to disk so restarts reuse a live session instead of
// burning a login (and an OTP round-trip) on every boot.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bookingsync/internal/config"
	"bookingsync/internal/constants"
	"bookingsync/internal/logger"
	"bookingsync/pkg/errors"
	"bookingsync/pkg/metrics"
)

type State string

const (
	StateLoggedOut      State = "LOGGED_OUT"
	StateAuthenticating State = "AUTHENTICATING"
	StateLoggedIn       State = "LOGGED_IN"
	StateExpired        State = "EXPIRED"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Manager struct {
	cfg      config.SessionConfig
	source   string
	client   *http.Client
	jar      *cookiejar.Jar
	limiter  *rate.Limiter
	otp      *OTPRetriever
	logger   logger.Logger
	loginURL *url.URL

	mu    sync.RWMutex
	state State

	// loginMu serializes logins without blocking in-flight requests.
	loginMu sync.Mutex
}

func NewManager(source string, cfg config.SessionConfig, otp *OTPRetriever, log logger.Logger) (*Manager, error) {
	loginURL, err := url.Parse(cfg.LoginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid login URL for source %s: %w", source, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rps := cfg.CrawlRPS
	if rps <= 0 {
		rps = constants.DefaultCrawlRPS
	}

	m := &Manager{
		cfg:      cfg,
		source:   source,
		jar:      jar,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		otp:      otp,
		logger:   log,
		loginURL: loginURL,
		state:    StateLoggedOut,
	}

	m.client = &http.Client{
		Jar:     jar,
		Timeout: constants.DefaultHTTPTimeout,
	}

	if cfg.CookiePath != "" {
		cookies, err := loadCookies(cfg.CookiePath)
		if err != nil {
			log.Warnw("Failed to load persisted cookies, starting logged out",
				"source", source,
				"error", err)
		} else if len(cookies) > 0 {
			jar.SetCookies(loginURL, cookies)
			m.state = StateLoggedIn
			log.Infow("Restored persisted session cookies",
				"source", source,
				"cookies", len(cookies))
		}
	}

	return m, nil
}

func (m *Manager) Source() string {
	return m.source
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Invalidate marks the session expired so the next EnsureSession logs in
// again. In-flight requests are not interrupted.
func (m *Manager) Invalidate() {
	m.setState(StateExpired)
}

// EnsureSession probes a restored or live session and logs in when the probe
// fails. Safe to call before every crawl batch.
func (m *Manager) EnsureSession(ctx context.Context) error {
	if m.State() == StateLoggedIn {
		if err := m.Probe(ctx); err == nil {
			return nil
		}
		m.Invalidate()
	}
	return m.Login(ctx)
}

// Login authenticates with the portal. When OTP is enabled the verification
// code is pulled from the mailbox and submitted as a second step.
func (m *Manager) Login(ctx context.Context) error {
	return m.login(ctx, false)
}

func (m *Manager) login(ctx context.Context, force bool) error {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	// Another caller may have finished a login while we waited. A forced
	// refresh re-submits credentials even when the session still probes live.
	wasLoggedIn := m.State() == StateLoggedIn
	if !force && wasLoggedIn {
		if err := m.Probe(ctx); err == nil {
			return nil
		}
	}

	m.setState(StateAuthenticating)
	start := time.Now()

	err := m.doLogin(ctx)
	if err != nil {
		// A failed scheduled refresh keeps the old cookies in play while
		// they still pass the probe.
		if force && wasLoggedIn && m.Probe(ctx) == nil {
			m.setState(StateLoggedIn)
		} else {
			m.setState(StateLoggedOut)
		}
		metrics.LoginAttemptsTotal.WithLabelValues(m.source, "failure").Inc()
		return err
	}

	m.setState(StateLoggedIn)
	metrics.LoginAttemptsTotal.WithLabelValues(m.source, "success").Inc()
	m.logger.InfowCtx(ctx, "Login completed",
		"source", m.source,
		"duration_ms", time.Since(start).Milliseconds())

	if m.cfg.CookiePath != "" {
		if err := saveCookies(m.cfg.CookiePath, m.jar.Cookies(m.loginURL)); err != nil {
			m.logger.Warnw("Failed to persist session cookies",
				"source", m.source,
				"error", err)
		}
	}
	return nil
}

func (m *Manager) doLogin(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", m.cfg.Username)
	form.Set("password", m.cfg.Password)

	resp, err := m.postForm(ctx, m.cfg.LoginURL, form)
	if err != nil {
		return errors.ErrAuthFailed.WithCause(err).WithDetail("source", m.source)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.ErrAuthFailed.
			WithDetail("source", m.source).
			WithDetail("status", resp.StatusCode)
	}

	if m.otp != nil && m.cfg.OTP.Enabled {
		code, err := m.otp.WaitForCode(ctx)
		if err != nil {
			return err
		}

		otpForm := url.Values{}
		otpForm.Set("code", code)
		resp, err := m.postForm(ctx, m.cfg.OTP.SubmitURL, otpForm)
		if err != nil {
			return errors.ErrAuthFailed.WithCause(err).WithDetail("source", m.source)
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return errors.ErrAuthFailed.
				WithDetail("source", m.source).
				WithDetail("status", resp.StatusCode)
		}
	}

	return m.Probe(ctx)
}

// Probe hits the authenticated landing page and fails when the portal
// bounces us back to login.
func (m *Manager) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.ProbeURL, nil)
	if err != nil {
		return err
	}
	m.decorate(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return errors.ErrAuthExpired.WithCause(err).WithDetail("source", m.source)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.ErrAuthExpired.
			WithDetail("source", m.source).
			WithDetail("status", resp.StatusCode)
	}
	if m.isLoginPage(resp.Request.URL) {
		return errors.ErrAuthExpired.WithDetail("source", m.source)
	}
	return nil
}

// Get performs a rate-limited authenticated GET. A redirect back to the login
// page invalidates the session and returns AUTH_EXPIRED; the caller owns the
// response body otherwise.
func (m *Manager) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	m.decorate(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || m.isLoginPage(resp.Request.URL) {
		resp.Body.Close()
		m.Invalidate()
		return nil, errors.ErrAuthExpired.WithDetail("source", m.source)
	}
	return resp, nil
}

// ReloginLoop re-authenticates on a fixed interval whether or not the
// session still looks alive. Portals expire cookies server-side regardless
// of activity, so waiting for an AUTH_EXPIRED mid-crawl would lose a tick.
func (m *Manager) ReloginLoop(ctx context.Context) {
	interval := m.cfg.ReloginInterval
	if interval <= 0 {
		interval = constants.DefaultReloginInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.login(ctx, true); err != nil {
				m.logger.ErrorwCtx(ctx, "Scheduled re-login failed",
					"source", m.source,
					"error", err)
			}
		}
	}
}

func (m *Manager) postForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	m.decorate(req)
	return m.client.Do(req)
}

func (m *Manager) decorate(req *http.Request) {
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

func (m *Manager) isLoginPage(u *url.URL) bool {
	if u == nil {
		return false
	}
	return u.Host == m.loginURL.Host && u.Path == m.loginURL.Path
}
