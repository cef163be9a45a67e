package warmer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/store"
)

const (
	loginPagePath   = "customer/account/login"
	loginPostPath   = "customer/account/loginPost/"
	storeSwitchPath = "stores/store/switch"
)

// ClientFactory builds the per-identity HTTP clients used for warming.
type ClientFactory struct {
	stores  *store.Manager
	logger  *zap.Logger
	timeout time.Duration
}

// NewClientFactory constructs a ClientFactory.
func NewClientFactory(stores *store.Manager, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{
		stores:  stores,
		logger:  logger,
		timeout: 60 * time.Second,
	}
}

// ClientFor builds an HTTP client bound to one crawl identity: an empty
// cookie jar, optional basic auth, redirects disabled so every status stays
// observable, and DNS pinned to the identity's instance IP for every
// configured store host. If the identity carries a credential, a login
// sequence runs before any warm request; if store switching is enabled, a
// store-switch request runs to set the store-selection cookie. A failed login
// or store switch is fatal to this identity only.
func (f *ClientFactory) ClientFor(ctx context.Context, identity Identity, opts Options) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	var rt http.RoundTripper = f.transport(identity.Instance)
	if opts.BasicAuth != nil {
		rt = &basicAuthRoundTripper{next: rt, username: opts.BasicAuth.Username, password: opts.BasicAuth.Password}
	}

	client := &http.Client{
		Jar:       jar,
		Transport: rt,
		Timeout:   f.timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if identity.Credential != nil {
		if err := f.login(ctx, client, opts.Store, *identity.Credential); err != nil {
			return nil, fmt.Errorf("login as %q: %w", identity.Credential.Username, err)
		}
	}

	if opts.SwitchStore {
		if err := f.switchStore(ctx, client, opts.Store); err != nil {
			return nil, fmt.Errorf("switch store to %q: %w", opts.Store.Code, err)
		}
	}

	return client, nil
}

// transport returns the base transport for one identity. When an instance IP
// is set, every configured store host resolves to that IP for the lifetime of
// the client, leaving TLS server names untouched.
func (f *ClientFactory) transport(instanceIP string) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if instanceIP == "" {
		return tr
	}

	pins := f.dnsPins(instanceIP)
	tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if pinned, ok := pins[addr]; ok {
			addr = pinned
		}
		return dialer.DialContext(ctx, network, addr)
	}
	return tr
}

// dnsPins maps every configured store's host:port to the instance address.
func (f *ClientFactory) dnsPins(instanceIP string) map[string]string {
	pins := make(map[string]string)
	for _, st := range f.stores.All() {
		u, err := url.Parse(st.BaseURL)
		if err != nil || u.Hostname() == "" {
			f.logger.Warn("Skipping DNS pin for store with invalid base URL",
				zap.String("store", st.Code), zap.String("base_url", st.BaseURL))
			continue
		}
		port := u.Port()
		if port == "" {
			if u.Scheme == "https" {
				port = "443"
			} else {
				port = "80"
			}
		}
		pins[net.JoinHostPort(u.Hostname(), port)] = net.JoinHostPort(instanceIP, port)
	}
	return pins
}

// login authenticates a customer session: fetch the login page, extract the
// anti-forgery form key, then POST the credentials so the session cookie
// lands in the client's jar.
func (f *ClientFactory) login(ctx context.Context, client *http.Client, st store.Store, cred Credential) error {
	formKey, err := f.retrieveFormKey(ctx, client, st)
	if err != nil {
		return err
	}

	form := url.Values{
		"form_key":        {formKey},
		"login[username]": {cred.Username},
		"login[password]": {cred.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, st.URL(loginPostPath), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post login: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	f.logger.Info("Login successful",
		zap.String("store", st.Code),
		zap.String("username", cred.Username),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// retrieveFormKey fetches the login page and extracts the hidden form_key
// input.
func (f *ClientFactory) retrieveFormKey(ctx context.Context, client *http.Client, st store.Store) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.URL(loginPagePath), nil)
	if err != nil {
		return "", fmt.Errorf("build login page request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch login page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("login page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse login page: %w", err)
	}

	formKey, ok := doc.Find(`input[name="form_key"]`).First().Attr("value")
	if !ok || formKey == "" {
		return "", fmt.Errorf("form_key not found on login page")
	}

	f.logger.Debug("Form key retrieved", zap.String("store", st.Code))
	return formKey, nil
}

// switchStore issues the store-switch request so the store-selection cookie
// is set before warming begins.
func (f *ClientFactory) switchStore(ctx context.Context, client *http.Client, st store.Store) error {
	switchURL := st.URL(storeSwitchPath) + "?" + url.Values{"___store": {st.Code}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, switchURL, nil)
	if err != nil {
		return fmt.Errorf("build store switch request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request store switch: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("store switch returned status %d", resp.StatusCode)
	}

	f.logger.Info("Store switch successful",
		zap.String("store", st.Code),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// basicAuthRoundTripper adds HTTP basic auth to every outgoing request.
type basicAuthRoundTripper struct {
	next     http.RoundTripper
	username string
	password string
}

func (t *basicAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.next.RoundTrip(clone)
}
