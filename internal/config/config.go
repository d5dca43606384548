package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/kvconfig/internal/errors"
	"github.com/systmms/kvconfig/internal/logging"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "kvconfig.yaml"

//go:embed schema.json
var schemaJSON string

// Config holds the runtime configuration
type Config struct {
	Path   string
	Logger *logging.Logger
	// Explicit is set when Path came from the command line. A missing file
	// is only an error in that case.
	Explicit   bool
	Definition *Definition
}

// Definition represents the kvconfig.yaml structure
type Definition struct {
	Version  int               `yaml:"version"`
	Store    StoreDefinition   `yaml:"store"`
	Cache    CacheDefinition   `yaml:"cache"`
	Filter   FilterDefinition  `yaml:"filter"`
	Source   SourceDefinition  `yaml:"source"`
	Defaults map[string]string `yaml:"defaults"`
	Metrics  MetricsDefinition `yaml:"metrics"`
}

// StoreDefinition addresses the remote secret store
type StoreDefinition struct {
	URL       string             `yaml:"url"`
	TimeoutMs int                `yaml:"timeout_ms,omitempty"`
	Azure     AzureDefinition    `yaml:"azure"`
	AWS       AWSDefinition      `yaml:"aws"`
	GCP       GCPDefinition      `yaml:"gcp"`
	Akeyless  AkeylessDefinition `yaml:"akeyless"`
}

// AzureDefinition holds Azure Key Vault authentication settings
type AzureDefinition struct {
	TenantID               string             `yaml:"tenant_id"`
	ClientID               string             `yaml:"client_id"`
	ClientSecret           string             `yaml:"client_secret"`
	ClientSecretKeyring    *KeyringDefinition `yaml:"client_secret_keyring,omitempty"`
	UseManagedIdentity     bool               `yaml:"use_managed_identity"`
	UserAssignedIdentityID string             `yaml:"user_assigned_identity_id"`
}

// KeyringDefinition names an OS keyring entry
type KeyringDefinition struct {
	Service string `yaml:"service"`
	Account string `yaml:"account"`
}

// AWSDefinition holds AWS Secrets Manager settings
type AWSDefinition struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GCPDefinition holds GCP Secret Manager settings
type GCPDefinition struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// AkeylessDefinition holds Akeyless authentication settings
type AkeylessDefinition struct {
	GatewayURL       string             `yaml:"gateway_url"`
	AccessID         string             `yaml:"access_id"`
	AccessKey        string             `yaml:"access_key"`
	AccessKeyKeyring *KeyringDefinition `yaml:"access_key_keyring,omitempty"`
	AccessType       string             `yaml:"access_type"`
}

// CacheDefinition selects and tunes the cached strategy. Nil pointers mean
// "not set" so defaults and environment overrides can be told apart.
type CacheDefinition struct {
	Enabled          *bool  `yaml:"enabled,omitempty"`
	TTLMs            *int64 `yaml:"ttl_ms,omitempty"`
	FetchConcurrency int    `yaml:"fetch_concurrency,omitempty"`
}

// FilterDefinition configures the direct strategy's name filter
type FilterDefinition struct {
	SecretNameRegex string `yaml:"secret_name_regex,omitempty"`
}

// SourceDefinition names the property source and fixes its priority
type SourceDefinition struct {
	Name    string `yaml:"name,omitempty"`
	Ordinal *int   `yaml:"ordinal,omitempty"`
}

// MetricsDefinition controls Prometheus metrics
type MetricsDefinition struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Load reads, validates and parses the configuration file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if !c.Explicit {
				c.Logger.Debug("No configuration file at %s, using environment and defaults", c.Path)
				c.Definition = &Definition{}
				return nil
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path or omit it to configure through environment variables",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	c.Definition = def
	return nil
}

// Parse validates a kvconfig.yaml document and decodes it
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "configuration does not match the expected structure",
			Suggestion: err.Error(),
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your kvconfig.yaml file",
		}
	}

	return &def, nil
}

// validateSchema checks a decoded document against the embedded JSON schema
func validateSchema(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return dserrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: "Compare the file with the documented kvconfig.yaml layout",
		}
	}

	return nil
}
