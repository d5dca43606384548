package config

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/stores"
	"github.com/systmms/kvconfig/internal/strategies"
	"github.com/systmms/kvconfig/pkg/lookup"
)

// Environment variables that override the configuration file.
const (
	EnvURL               = "AZURE_KEYVAULT_URL"
	EnvCache             = "AZURE_KEYVAULT_CACHE"
	EnvCacheTTL          = "AZURE_KEYVAULT_CACHE_TTL"
	EnvSecretNamePattern = "AZURE_KEYVAULT_SECRET_NAME_REGEX"
)

const (
	// DefaultSourceName is the property source name reported to callers.
	DefaultSourceName = "KeyVaultConfigSource"
	// DefaultOrdinal ranks the secret source below explicit overrides and
	// above defaults.
	DefaultOrdinal = 90
	// DefaultMetricsPath is where serve exposes Prometheus metrics.
	DefaultMetricsPath = "/metrics"
)

// MaxTTLMs is the largest cache TTL, in milliseconds, a time.Duration can hold.
const MaxTTLMs = math.MaxInt64 / int64(time.Millisecond)

// Settings is the resolved configuration, with environment overrides applied
// and defaults filled in.
type Settings struct {
	Store             stores.Config
	Cached            bool
	TTL               time.Duration
	FetchConcurrency  int
	SecretNamePattern string
	SourceName        string
	Ordinal           int
	Defaults          map[string]string
	MetricsEnabled    bool
	MetricsPath       string
}

// Enabled reports whether a store URL is configured.
func (s Settings) Enabled() bool {
	return s.Store.URL != ""
}

// Strategy returns the strategy selection part of the settings.
func (s Settings) Strategy() strategies.Settings {
	return strategies.Settings{
		Cached:            s.Cached,
		RefreshInterval:   s.TTL,
		FetchConcurrency:  s.FetchConcurrency,
		SecretNamePattern: s.SecretNamePattern,
	}
}

// Settings resolves the loaded definition against the environment. Load
// must have been called first, or Definition set directly.
func (c *Config) Settings() (Settings, error) {
	def := c.Definition
	if def == nil {
		def = &Definition{}
	}

	s := Settings{
		Store: stores.Config{
			URL:     def.Store.URL,
			Timeout: time.Duration(def.Store.TimeoutMs) * time.Millisecond,
			Azure: stores.AzureConfig{
				TenantID:               def.Store.Azure.TenantID,
				ClientID:               def.Store.Azure.ClientID,
				ClientSecret:           def.Store.Azure.ClientSecret,
				UseManagedIdentity:     def.Store.Azure.UseManagedIdentity,
				UserAssignedIdentityID: def.Store.Azure.UserAssignedIdentityID,
			},
			AWS: stores.AWSConfig{
				Region:          def.Store.AWS.Region,
				Endpoint:        def.Store.AWS.Endpoint,
				AccessKeyID:     def.Store.AWS.AccessKeyID,
				SecretAccessKey: def.Store.AWS.SecretAccessKey,
			},
			GCP: stores.GCPConfig{
				CredentialsFile: def.Store.GCP.CredentialsFile,
			},
			Akeyless: stores.AkeylessConfig{
				GatewayURL: def.Store.Akeyless.GatewayURL,
				AccessID:   def.Store.Akeyless.AccessID,
				AccessKey:  def.Store.Akeyless.AccessKey,
				AccessType: def.Store.Akeyless.AccessType,
			},
		},
		Cached:            true,
		TTL:               lookup.DefaultRefreshInterval,
		FetchConcurrency:  1,
		SecretNamePattern: lookup.DefaultSecretNamePattern,
		SourceName:        DefaultSourceName,
		Ordinal:           DefaultOrdinal,
		Defaults:          def.Defaults,
		MetricsEnabled:    def.Metrics.Enabled,
		MetricsPath:       DefaultMetricsPath,
	}

	if kr := def.Store.Azure.ClientSecretKeyring; kr != nil {
		s.Store.Azure.ClientSecretKeyring = stores.KeyringRef{Service: kr.Service, Account: kr.Account}
	}
	if kr := def.Store.Akeyless.AccessKeyKeyring; kr != nil {
		s.Store.Akeyless.AccessKeyKeyring = stores.KeyringRef{Service: kr.Service, Account: kr.Account}
	}
	if def.Cache.Enabled != nil {
		s.Cached = *def.Cache.Enabled
	}
	if def.Cache.TTLMs != nil {
		ttl, err := ttlFromMs("cache.ttl_ms", *def.Cache.TTLMs)
		if err != nil {
			return Settings{}, err
		}
		s.TTL = ttl
	}
	if def.Cache.FetchConcurrency != 0 {
		s.FetchConcurrency = def.Cache.FetchConcurrency
	}
	if def.Filter.SecretNameRegex != "" {
		s.SecretNamePattern = def.Filter.SecretNameRegex
	}
	if def.Source.Name != "" {
		s.SourceName = def.Source.Name
	}
	if def.Source.Ordinal != nil {
		s.Ordinal = *def.Source.Ordinal
	}
	if def.Metrics.Path != "" {
		s.MetricsPath = def.Metrics.Path
	}

	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	if s.Enabled() {
		c.Logger.Debug("Store %s, cached=%t, ttl=%s", s.Store.URL, s.Cached, s.TTL)
	}
	return s, nil
}

func applyEnv(s *Settings) error {
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		s.Store.URL = v
	}

	if v, ok := os.LookupEnv(EnvCache); ok && v != "" {
		cached, err := strconv.ParseBool(v)
		if err != nil {
			return dserrors.ConfigError{
				Field:      EnvCache,
				Value:      v,
				Message:    "must be a boolean",
				Suggestion: "Use true or false",
			}
		}
		s.Cached = cached
	}

	if v, ok := os.LookupEnv(EnvCacheTTL); ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return dserrors.ConfigError{
				Field:      EnvCacheTTL,
				Value:      v,
				Message:    "must be a whole number of milliseconds",
				Suggestion: "For example 180000 for three minutes",
			}
		}
		ttl, err := ttlFromMs(EnvCacheTTL, ms)
		if err != nil {
			return err
		}
		s.TTL = ttl
	}

	if v, ok := os.LookupEnv(EnvSecretNamePattern); ok && v != "" {
		s.SecretNamePattern = v
	}

	return nil
}

// ttlFromMs converts a millisecond TTL, rejecting values that do not fit in a
// time.Duration.
func ttlFromMs(field string, ms int64) (time.Duration, error) {
	if ms > MaxTTLMs {
		return 0, dserrors.ConfigError{
			Field:      field,
			Value:      ms,
			Message:    fmt.Sprintf("TTL must not exceed %d milliseconds", MaxTTLMs),
			Suggestion: fmt.Sprintf("Use %d for a snapshot that never goes stale", MaxTTLMs),
		}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Validate checks settings that the schema cannot express.
func (s Settings) Validate() error {
	if s.TTL < 0 {
		return dserrors.ConfigError{
			Field:      "cache.ttl_ms",
			Value:      s.TTL.Milliseconds(),
			Message:    "TTL must not be negative",
			Suggestion: "Use 0 to refresh on every access",
		}
	}
	if s.FetchConcurrency < 1 {
		return dserrors.ConfigError{
			Field:      "cache.fetch_concurrency",
			Value:      s.FetchConcurrency,
			Message:    "fetch concurrency must be at least 1",
			Suggestion: "Use 1 for sequential fetches",
		}
	}
	if _, err := regexp.Compile(s.SecretNamePattern); err != nil {
		return dserrors.ConfigError{
			Field:      "filter.secret_name_regex",
			Value:      s.SecretNamePattern,
			Message:    "invalid regular expression: " + err.Error(),
			Suggestion: "The default " + lookup.DefaultSecretNamePattern + " matches every valid Key Vault secret name",
		}
	}
	if s.Enabled() {
		if _, err := stores.NewRegistry().TypeFor(s.Store.URL); err != nil {
			return err
		}
	}
	return nil
}
