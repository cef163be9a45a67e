package warmer

import (
	"io"

	"github.com/warmfront/warmfront/internal/config"
	"github.com/warmfront/warmfront/internal/store"
)

// Credential is one username/password pair used for an authenticated crawl
// session or for HTTP basic auth.
type Credential struct {
	Username string
	Password string
}

// Options is the resolved configuration snapshot for one warming run.
// Precedence was applied at construction time (explicit override, then
// per-store configuration, then defaults); the struct is not mutated by the
// engine once a run starts.
type Options struct {
	Store             store.Store
	Concurrency       int
	Instances         []string
	Credentials       []Credential
	BasicAuth         *Credential
	SwitchStore       bool
	DisableGuestCrawl bool
	WebhookEnabled    bool
	WebhookURL        string
	RequestsPerSecond float64

	// Output, when set, receives per-URL progress lines as requests settle.
	// Manual runs pass the command's stdout; scheduled runs leave it nil.
	Output io.Writer
}

// OptionsForStore resolves Options for one store from configuration, applying
// per-store overrides on top of the global warmer defaults.
func OptionsForStore(cfg config.Config, st store.Store) Options {
	w := cfg.Warmer

	opts := Options{
		Store:             st,
		Concurrency:       w.Concurrency,
		Instances:         append([]string(nil), w.Instances...),
		Credentials:       zipCredentials(w.CustomerUsernames, w.CustomerPasswords),
		SwitchStore:       w.SwitchStore,
		DisableGuestCrawl: w.DisableGuestCrawl,
		WebhookEnabled:    w.WebhookEnabled,
		WebhookURL:        w.WebhookURL,
		RequestsPerSecond: w.RequestsPerSecond,
	}
	if w.BasicAuthUsername != "" && w.BasicAuthPassword != "" {
		opts.BasicAuth = &Credential{Username: w.BasicAuthUsername, Password: w.BasicAuthPassword}
	}

	sc, ok := cfg.StoreByID(st.ID)
	if !ok {
		return opts
	}
	if sc.Concurrency > 0 {
		opts.Concurrency = sc.Concurrency
	}
	if len(sc.Instances) > 0 {
		opts.Instances = append([]string(nil), sc.Instances...)
	}
	if sc.SwitchStore != nil {
		opts.SwitchStore = *sc.SwitchStore
	}
	if sc.DisableGuestCrawl != nil {
		opts.DisableGuestCrawl = *sc.DisableGuestCrawl
	}
	if sc.WebhookURL != "" {
		opts.WebhookURL = sc.WebhookURL
	}
	return opts
}

func zipCredentials(usernames, passwords []string) []Credential {
	n := len(usernames)
	if len(passwords) < n {
		n = len(passwords)
	}
	creds := make([]Credential, 0, n)
	for i := 0; i < n; i++ {
		creds = append(creds, Credential{Username: usernames[i], Password: passwords[i]})
	}
	return creds
}
