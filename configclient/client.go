package configclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/logger"
	"github.com/campushq/corekit/observability"
	"github.com/campushq/corekit/transport"
)

// Resolver resolves a service name to a base URL. *discovery.Client
// satisfies it.
type Resolver interface {
	ResolveURL(ctx context.Context, serviceName string) (string, error)
}

// Config configures the configuration client.
type Config struct {
	// ServiceName is the discovery name of the configuration service.
	// Default: config-service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// Owner is the name of the service the values belong to. Sent as the
	// service_name query parameter on fetches.
	Owner string `yaml:"owner" mapstructure:"owner"`
	// Environment scopes fetched values (development, staging, production).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// CacheTTL is how long a fetched value is served without re-fetching.
	// Default: 60s.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// Defaults are served when a key cannot be fetched and has no cached
	// value, stale or fresh.
	Defaults map[string]any `yaml:"defaults" mapstructure:"defaults"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "config-service"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 60 * time.Second
	}
}

type cacheEntry struct {
	value     Value
	fetchedAt time.Time
}

type flagEntry struct {
	def       FlagDefinition
	fetchedAt time.Time
}

type evalEntry struct {
	enabled   bool
	fetchedAt time.Time
}

// Client fetches configuration values and feature flags with caching and
// fallbacks.
type Client struct {
	cfg      Config
	resolver Resolver
	doer     transport.Doer
	log      *logger.Logger
	metrics  *observability.RegistryMetrics

	mu     sync.RWMutex
	values map[string]cacheEntry
	flags  map[string]flagEntry

	// evals holds bulk-primed flag evaluations for one user, see PrimeFlags.
	evals    map[string]evalEntry
	evalUser string

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a configuration client.
func New(cfg Config, resolver Resolver, doer transport.Doer, log *logger.Logger) *Client {
	cfg.ApplyDefaults()
	return &Client{
		cfg:      cfg,
		resolver: resolver,
		doer:     doer,
		log:      log.WithComponent("configclient"),
		values:   make(map[string]cacheEntry),
		flags:    make(map[string]flagEntry),
		evals:    make(map[string]evalEntry),
		now:      time.Now,
	}
}

// WithMetrics enables cache hit and miss recording.
func (c *Client) WithMetrics(m *observability.RegistryMetrics) *Client {
	c.metrics = m
	return c
}

// GetValue returns the value for key. Resolution order: fresh cache, remote
// fetch, stale cache, registered default. When all of those miss, it returns
// ConfigUnavailable.
func (c *Client) GetValue(ctx context.Context, key string) (Value, error) {
	c.mu.RLock()
	entry, cached := c.values[key]
	c.mu.RUnlock()

	now := c.now()
	if cached && now.Sub(entry.fetchedAt) < c.cfg.CacheTTL {
		if c.metrics != nil {
			c.metrics.RecordConfigCache(ctx, true)
		}
		return entry.value, nil
	}
	if c.metrics != nil {
		c.metrics.RecordConfigCache(ctx, false)
	}

	val, err := c.fetchValue(ctx, key)
	if err == nil {
		c.mu.Lock()
		c.values[key] = cacheEntry{value: val, fetchedAt: now}
		c.mu.Unlock()
		return val, nil
	}

	if cached {
		c.log.Warn("serving stale configuration value", logger.Fields(
			"key", key,
			"age", now.Sub(entry.fetchedAt).String(),
			logger.FieldError, err.Error(),
		))
		return entry.value, nil
	}

	if def, ok := c.cfg.Defaults[key]; ok {
		c.log.Warn("serving default configuration value", logger.Fields(
			"key", key,
			logger.FieldError, err.Error(),
		))
		return NewValue(def), nil
	}

	return Value{}, errors.ConfigUnavailable(key).WithCause(err)
}

// GetString returns the value for key as a string, falling back to def.
func (c *Client) GetString(ctx context.Context, key, def string) string {
	v, err := c.GetValue(ctx, key)
	if err != nil {
		return def
	}
	return v.String(def)
}

// GetInt returns the value for key as an int, falling back to def.
func (c *Client) GetInt(ctx context.Context, key string, def int) int {
	v, err := c.GetValue(ctx, key)
	if err != nil {
		return def
	}
	return v.Int(def)
}

// GetBool returns the value for key as a bool, falling back to def.
func (c *Client) GetBool(ctx context.Context, key string, def bool) bool {
	v, err := c.GetValue(ctx, key)
	if err != nil {
		return def
	}
	return v.Bool(def)
}

// GetDuration returns the value for key as a duration, falling back to def.
func (c *Client) GetDuration(ctx context.Context, key string, def time.Duration) time.Duration {
	v, err := c.GetValue(ctx, key)
	if err != nil {
		return def
	}
	return v.Duration(def)
}

// GetFeatureFlag evaluates the named flag for a user. The flag definition is
// fetched and cached like a value; evaluation happens locally so the same
// user keeps getting the same answer while the definition is cached. An
// unknown or unreachable flag evaluates to false.
func (c *Client) GetFeatureFlag(ctx context.Context, flagKey, userID string) bool {
	c.mu.RLock()
	ev, primed := c.evals[flagKey]
	primedUser := c.evalUser
	c.mu.RUnlock()
	if primed && userID == primedUser && c.now().Sub(ev.fetchedAt) < c.cfg.CacheTTL {
		return ev.enabled
	}

	def, err := c.flagDefinition(ctx, flagKey)
	if err != nil {
		c.log.Warn("feature flag unavailable, defaulting to off", logger.Fields(
			"flag", flagKey,
			logger.FieldError, err.Error(),
		))
		return false
	}
	return def.Evaluate(userID)
}

func (c *Client) flagDefinition(ctx context.Context, flagKey string) (FlagDefinition, error) {
	c.mu.RLock()
	entry, cached := c.flags[flagKey]
	c.mu.RUnlock()

	now := c.now()
	if cached && now.Sub(entry.fetchedAt) < c.cfg.CacheTTL {
		return entry.def, nil
	}

	def, err := c.fetchFlag(ctx, flagKey)
	if err == nil {
		c.mu.Lock()
		c.flags[flagKey] = flagEntry{def: def, fetchedAt: now}
		c.mu.Unlock()
		return def, nil
	}

	if cached {
		return entry.def, nil
	}
	return FlagDefinition{}, err
}

// Prime fetches every configuration value in the client's scope in one bulk
// request and seeds the value cache.
func (c *Client) Prime(ctx context.Context) error {
	base, err := c.resolver.ResolveURL(ctx, c.cfg.ServiceName)
	if err != nil {
		return err
	}

	body, err := c.doer.Get(ctx, base+"/api/v1/configurations/bulk"+c.scopeQuery())
	if err != nil {
		return err
	}

	var resp struct {
		Configurations map[string]any `json:"configurations"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.ConnectionFailed(base, fmt.Errorf("decode bulk response: %w", err))
	}

	now := c.now()
	c.mu.Lock()
	for k, raw := range resp.Configurations {
		c.values[k] = cacheEntry{value: NewValue(raw), fetchedAt: now}
	}
	c.mu.Unlock()

	c.log.Info("configuration cache primed", logger.Fields("keys", len(resp.Configurations)))
	return nil
}

// PrimeFlags fetches the scope's flags evaluated for one user in a single
// bulk request. The evaluations are served to that user for one cache TTL;
// other users fall back to the per-flag definition path.
func (c *Client) PrimeFlags(ctx context.Context, userID string) error {
	base, err := c.resolver.ResolveURL(ctx, c.cfg.ServiceName)
	if err != nil {
		return err
	}

	q := c.scopeValues()
	if userID != "" {
		q.Set("user_id", userID)
	}
	u := base + "/api/v1/feature-flags/bulk"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	body, err := c.doer.Get(ctx, u)
	if err != nil {
		return err
	}

	var resp struct {
		Flags map[string]bool `json:"flags"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.ConnectionFailed(base, fmt.Errorf("decode bulk flags response: %w", err))
	}

	now := c.now()
	c.mu.Lock()
	c.evals = make(map[string]evalEntry, len(resp.Flags))
	for k, enabled := range resp.Flags {
		c.evals[k] = evalEntry{enabled: enabled, fetchedAt: now}
	}
	c.evalUser = userID
	c.mu.Unlock()

	c.log.Info("feature flag cache primed", logger.Fields("flags", len(resp.Flags)))
	return nil
}

// Reload drops all cached values and flag definitions. The next read of
// each key fetches fresh.
func (c *Client) Reload() {
	c.mu.Lock()
	c.values = make(map[string]cacheEntry)
	c.flags = make(map[string]flagEntry)
	c.evals = make(map[string]evalEntry)
	c.mu.Unlock()
}

func (c *Client) fetchValue(ctx context.Context, key string) (Value, error) {
	base, err := c.resolver.ResolveURL(ctx, c.cfg.ServiceName)
	if err != nil {
		return Value{}, err
	}

	u := fmt.Sprintf("%s/api/v1/configurations/value/%s%s", base, url.PathEscape(key), c.scopeQuery())
	body, err := c.doer.Get(ctx, u)
	if err != nil {
		return Value{}, err
	}

	var resp struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Value{}, errors.ConnectionFailed(base, fmt.Errorf("decode value response: %w", err))
	}
	return NewValue(resp.Value), nil
}

func (c *Client) scopeValues() url.Values {
	q := url.Values{}
	if c.cfg.Environment != "" {
		q.Set("environment", c.cfg.Environment)
	}
	if c.cfg.Owner != "" {
		q.Set("service_name", c.cfg.Owner)
	}
	return q
}

// scopeQuery builds the environment and service_name query string, empty
// when neither is configured.
func (c *Client) scopeQuery() string {
	q := c.scopeValues()
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) fetchFlag(ctx context.Context, flagKey string) (FlagDefinition, error) {
	base, err := c.resolver.ResolveURL(ctx, c.cfg.ServiceName)
	if err != nil {
		return FlagDefinition{}, err
	}

	u := fmt.Sprintf("%s/api/v1/feature-flags/%s", base, url.PathEscape(flagKey))
	body, err := c.doer.Get(ctx, u)
	if err != nil {
		return FlagDefinition{}, err
	}

	var def FlagDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return FlagDefinition{}, errors.ConnectionFailed(base, fmt.Errorf("decode flag response: %w", err))
	}
	return def, nil
}
