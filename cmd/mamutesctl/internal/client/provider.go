package client

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/EmanuelAngelo/mamutes-fa/cmd/mamutesctl/internal/auth"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk/navigation"
	"github.com/pterm/pterm"
)

// Options configures a Provider.
type Options struct {
	ServerURL string
	// StoreBackend is one of auth.BackendFile, auth.BackendKeyring, auth.BackendMemory.
	StoreBackend string
	// Dir holds the file backend's credentials.
	Dir     string
	Timeout time.Duration
	// BearerToken is an ephemeral token that bypasses the credential store (CI, testing).
	BearerToken string
	Routes      *navigation.Routes
	Logger      *slog.Logger
}

// Provider lazily builds the credential store, the SDK client and the navigator shared
// by every command of one invocation.
type Provider struct {
	opts Options

	storeOnce sync.Once
	store     sdk.CredentialStore
	storeErr  error

	sdkOnce   sync.Once
	sdkClient *sdk.Client
	sdkErr    error

	navOnce   sync.Once
	navMu     sync.Mutex
	navigator *navigation.Navigator

	expiredWarnOnce sync.Once
}

// NewProvider constructs a new Provider.
func NewProvider(opts Options) *Provider {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Routes == nil {
		opts.Routes = navigation.DefaultRoutes()
	}
	return &Provider{opts: opts}
}

// ServerURL returns the server the provider talks to.
func (p *Provider) ServerURL() string {
	return p.opts.ServerURL
}

// UsesBearerToken reports whether an ephemeral token replaces the stored session.
func (p *Provider) UsesBearerToken() bool {
	return p.opts.BearerToken != ""
}

// Store returns the credential store selected by --store, or an in-memory store seeded
// with the ephemeral token.
func (p *Provider) Store() (sdk.CredentialStore, error) {
	p.storeOnce.Do(func() {
		if p.opts.BearerToken != "" {
			mem := sdk.NewMemoryStore()
			p.storeErr = mem.Set(sdk.AccessTokenKey, p.opts.BearerToken)
			p.store = mem
			return
		}

		dir := p.opts.Dir
		if dir == "" && (p.opts.StoreBackend == "" || p.opts.StoreBackend == auth.BackendFile) {
			var err error
			if dir, err = auth.DefaultDir(); err != nil {
				p.storeErr = err
				return
			}
		}
		p.store, p.storeErr = auth.NewStore(p.opts.StoreBackend, dir)
	})
	return p.store, p.storeErr
}

// SDKClient returns the SDK client. Its session is seeded from the credential store and
// writes renewed tokens back to it.
func (p *Provider) SDKClient(ctx context.Context) (*sdk.Client, error) {
	p.sdkOnce.Do(func() {
		store, err := p.Store()
		if err != nil {
			p.sdkErr = err
			return
		}

		opts := []sdk.ClientOption{
			sdk.WithCredentialStore(store),
			sdk.WithLogger(p.opts.Logger),
			sdk.WithTimeout(p.opts.Timeout),
			sdk.WithLoginRedirect(p.loginRequired),
		}
		p.sdkClient, p.sdkErr = sdk.NewClient(p.opts.ServerURL, opts...)
	})
	return p.sdkClient, p.sdkErr
}

// HTTPClient returns the intercepted HTTP client for raw API calls.
func (p *Provider) HTTPClient(ctx context.Context) (*http.Client, error) {
	c, err := p.SDKClient(ctx)
	if err != nil {
		return nil, err
	}
	return c.HTTPClient(), nil
}

// Navigator returns the navigator guarding views against the SDK client's session.
func (p *Provider) Navigator(ctx context.Context) (*navigation.Navigator, error) {
	c, err := p.SDKClient(ctx)
	if err != nil {
		return nil, err
	}
	p.navOnce.Do(func() {
		nav := navigation.NewNavigator(p.opts.Routes, c.Session(),
			navigation.WithNavigatorLogger(p.opts.Logger))
		p.navMu.Lock()
		p.navigator = nav
		p.navMu.Unlock()
	})
	p.navMu.Lock()
	defer p.navMu.Unlock()
	return p.navigator, nil
}

func (p *Provider) loginRequired() {
	p.expiredWarnOnce.Do(func() {
		pterm.Warning.Println("Session expired; run `mamutesctl auth login` to sign in again.")
	})
	p.navMu.Lock()
	nav := p.navigator
	p.navMu.Unlock()
	if nav != nil {
		nav.RedirectToLogin()
	}
}
