// Package fleet manages the lamps registered to one cloud account.
package fleet

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/luvo/internal/cloud"
	"github.com/dokzlo13/luvo/internal/lamp"
)

// Client owns the account credential and the collection of lamp controllers.
// The collection is rebuilt wholesale on every Discover.
type Client struct {
	cred     *cloud.Credential
	api      *cloud.Client
	recorder lamp.Recorder

	mu    sync.RWMutex
	lamps []*lamp.Controller
}

type options struct {
	cloudOpts []cloud.Option
	recorder  lamp.Recorder
}

// Option configures a fleet Client
type Option func(*options)

// WithBaseURL overrides the cloud API root
func WithBaseURL(base string) Option {
	return func(o *options) { o.cloudOpts = append(o.cloudOpts, cloud.WithBaseURL(base)) }
}

// WithTimeout bounds every cloud request
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.cloudOpts = append(o.cloudOpts, cloud.WithTimeout(d)) }
}

// WithHTTPClient replaces the HTTP client shared by all lamps
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.cloudOpts = append(o.cloudOpts, cloud.WithHTTPClient(hc)) }
}

// WithRateLimit caps cloud requests per second across the whole fleet (0 = unlimited)
func WithRateLimit(rps float64) Option {
	return func(o *options) { o.cloudOpts = append(o.cloudOpts, cloud.WithRateLimit(rps)) }
}

// WithRecorder attaches a command recorder to every controller
func WithRecorder(r lamp.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// New creates a fleet client for the given API token.
// No network call is made until Discover.
func New(token string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cred := cloud.NewCredential(token)
	return &Client{
		cred:     cred,
		api:      cloud.NewClient(cred, o.cloudOpts...),
		recorder: o.recorder,
	}
}

// Credential returns the credential shared by every controller of this fleet
func (c *Client) Credential() *cloud.Credential {
	return c.cred
}

// SetCredential swaps the API token in place.
// The credential is shared by reference, so controllers built before the
// swap use the new token as well.
func (c *Client) SetCredential(token string) {
	c.cred.SetToken(token)
	log.Info().Msg("Cloud credential replaced")
}

// Discover lists the account's lamps and replaces the collection with fresh
// controllers in unknown state. On failure the previous collection is kept.
func (c *Client) Discover(ctx context.Context) ([]*lamp.Controller, error) {
	records, err := c.api.ListLamps(ctx)
	if err != nil {
		return nil, err
	}

	lamps := make([]*lamp.Controller, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			log.Warn().Str("lamp", rec.ID).Str("name", rec.Name).Msg("Duplicate lamp in discovery response, skipping")
			continue
		}
		seen[rec.ID] = struct{}{}
		lamps = append(lamps, lamp.NewController(lamp.IdentityFromRecord(rec), c.api, c.recorder))
	}

	c.mu.Lock()
	c.lamps = lamps
	c.mu.Unlock()

	log.Debug().Int("lamps", len(lamps)).Msg("Lamps discovered")

	return c.Lamps(), nil
}

// TestConnection reports whether the lamp list can be fetched.
// It never mutates the collection and never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.api.ListLamps(ctx); err != nil {
		log.Debug().Err(err).Msg("Connection test failed")
		return false
	}
	return true
}

// Lamps returns the current collection in discovery order.
// The returned slice is a copy; the controllers are shared.
func (c *Client) Lamps() []*lamp.Controller {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*lamp.Controller, len(c.lamps))
	copy(out, c.lamps)
	return out
}

// Lamp returns the controller with the given id
func (c *Client) Lamp(id string) (*lamp.Controller, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, l := range c.lamps {
		if l.ID() == id {
			return l, true
		}
	}
	return nil, false
}

// LampBySerial returns the controller with the given serial number
func (c *Client) LampBySerial(serial string) (*lamp.Controller, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, l := range c.lamps {
		if l.SerialNumber() == serial {
			return l, true
		}
	}
	return nil, false
}

// Find resolves a lamp reference: id first, then serial number, then
// case-insensitive name
func (c *Client) Find(ref string) (*lamp.Controller, bool) {
	if l, ok := c.Lamp(ref); ok {
		return l, true
	}
	if l, ok := c.LampBySerial(ref); ok {
		return l, true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.lamps {
		if strings.EqualFold(l.Name(), ref) {
			return l, true
		}
	}
	return nil, false
}

// RefreshAll refreshes every lamp concurrently and joins the failures
func (c *Client) RefreshAll(ctx context.Context) error {
	lamps := c.Lamps()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, l := range lamps {
		wg.Add(1)
		go func(l *lamp.Controller) {
			defer wg.Done()
			if _, err := l.Refresh(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(l)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close releases idle connections
func (c *Client) Close() {
	c.api.Close()
}
