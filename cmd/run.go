package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/store"
	"github.com/warmfront/warmfront/internal/warmer"
)

var runFlags struct {
	stores            []string
	collectorType     string
	concurrency       int
	instances         []string
	customerUsernames []string
	customerPasswords []string
	basicAuthUsername string
	basicAuthPassword string
	switchStore       bool
	disableGuestCrawl bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a warming pass now",
	Long: `Collects the URL list for each selected store and warms it immediately,
printing one progress line per request. The command exits non-zero when any
page came back with a server error in every crawl identity.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		ctx := cmd.Context()

		f := cmd.Flags()
		if f.Changed("customer-username") || f.Changed("customer-password") {
			if err := validateRunCredentials(runFlags.customerUsernames, runFlags.customerPasswords); err != nil {
				return err
			}
		}

		stores, err := selectStores(a.Stores, runFlags.stores)
		if err != nil {
			return err
		}

		failed := false
		for _, st := range stores {
			code := runFlags.collectorType
			if code == "" {
				code = a.Config.Warmer.DefaultCollector
				if sc, ok := a.Config.StoreByID(st.ID); ok && sc.DefaultCollector != "" {
					code = sc.DefaultCollector
				}
			}
			c, err := a.Registry.Get(code)
			if err != nil {
				return fmt.Errorf("unknown URL source %q (available: %v)", code, a.Registry.Types())
			}

			urls, err := c.CollectURLs(ctx, st)
			if err != nil {
				return fmt.Errorf("collect URLs for store %q: %w", st.Code, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Warming %d URLs for store %s\n", len(urls), st.Code)

			opts := warmer.OptionsForStore(a.Config, st)
			applyRunFlags(cmd, &opts)
			opts.Output = cmd.OutOrStdout()

			results, err := a.Engine.Warm(ctx, urls, opts)
			if err != nil {
				a.Logger.Error("Warming pass reported pool failures", zap.Error(err))
				failed = true
			}
			if warmer.AnyServerError(results) {
				failed = true
			}
		}

		if failed {
			return fmt.Errorf("one or more pages failed to warm")
		}
		return nil
	},
}

// applyRunFlags layers explicitly set command flags over the configured
// options.
func applyRunFlags(cmd *cobra.Command, opts *warmer.Options) {
	f := cmd.Flags()
	if f.Changed("concurrency") {
		opts.Concurrency = runFlags.concurrency
	}
	if f.Changed("instance") {
		opts.Instances = runFlags.instances
	}
	if f.Changed("customer-username") || f.Changed("customer-password") {
		// Lengths were validated up front; zip pairwise.
		opts.Credentials = opts.Credentials[:0]
		for i := range runFlags.customerUsernames {
			opts.Credentials = append(opts.Credentials, warmer.Credential{
				Username: runFlags.customerUsernames[i],
				Password: runFlags.customerPasswords[i],
			})
		}
	}
	if f.Changed("basic-auth-username") {
		opts.BasicAuth = &warmer.Credential{
			Username: runFlags.basicAuthUsername,
			Password: runFlags.basicAuthPassword,
		}
	}
	if f.Changed("switch-store") {
		opts.SwitchStore = runFlags.switchStore
	}
	if f.Changed("disable-guest-crawl") {
		opts.DisableGuestCrawl = runFlags.disableGuestCrawl
	}
}

// validateRunCredentials rejects customer credential flag lists whose lengths
// differ; every username needs its password at the same position.
func validateRunCredentials(usernames, passwords []string) error {
	if len(usernames) != len(passwords) {
		return fmt.Errorf("--customer-username and --customer-password must be repeated the same number of times (got %d usernames and %d passwords)",
			len(usernames), len(passwords))
	}
	return nil
}

// selectStores resolves the --store flags to configured stores, defaulting to
// all of them.
func selectStores(manager *store.Manager, codes []string) ([]store.Store, error) {
	if len(codes) == 0 {
		return manager.All(), nil
	}
	stores := make([]store.Store, 0, len(codes))
	for _, code := range codes {
		st, ok := manager.ByCode(code)
		if !ok {
			return nil, fmt.Errorf("unknown store %q", code)
		}
		stores = append(stores, st)
	}
	return stores, nil
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&runFlags.stores, "store", nil, "store codes to warm (default: all)")
	f.StringVarP(&runFlags.collectorType, "type", "t", "", "URL source to collect from")
	f.IntVarP(&runFlags.concurrency, "concurrency", "c", 0, "max in-flight requests per identity")
	f.StringSliceVar(&runFlags.instances, "instance", nil, "instance IPs to pin crawling to")
	f.StringSliceVar(&runFlags.customerUsernames, "customer-username", nil, "customer usernames for authenticated crawls")
	f.StringSliceVar(&runFlags.customerPasswords, "customer-password", nil, "customer passwords for authenticated crawls")
	f.StringVar(&runFlags.basicAuthUsername, "basic-auth-username", "", "HTTP basic auth username")
	f.StringVar(&runFlags.basicAuthPassword, "basic-auth-password", "", "HTTP basic auth password")
	f.BoolVar(&runFlags.switchStore, "switch-store", false, "issue a store switch before warming")
	f.BoolVar(&runFlags.disableGuestCrawl, "disable-guest-crawl", false, "skip the guest identity")

	rootCmd.AddCommand(runCmd)
}
