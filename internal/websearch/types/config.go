package types

import "strings"

type ProviderID string

const (
	ProviderGoogle  ProviderID = "google"
	ProviderBrave   ProviderID = "brave"
	ProviderTavily  ProviderID = "tavily"
	ProviderExa     ProviderID = "exa"
	ProviderSearXNG ProviderID = "searxng"
	ProviderBocha   ProviderID = "bocha"
	ProviderZhipu   ProviderID = "zhipu"
)

var defaultHosts = map[ProviderID]string{
	ProviderGoogle: "https://www.googleapis.com",
	ProviderBrave:  "https://api.search.brave.com",
	ProviderTavily: "https://api.tavily.com",
	ProviderExa:    "https://api.exa.ai",
	ProviderBocha:  "https://api.bochaai.com",
	ProviderZhipu:  "https://open.bigmodel.cn/api/paas/v4/web_search",
}

// ProviderConfig represents search provider configuration
type ProviderConfig struct {
	ID   ProviderID `json:"id" yaml:"id" mapstructure:"id"`
	Name string     `json:"name" yaml:"name" mapstructure:"name"`

	// API settings
	APIHost string `json:"api_host" yaml:"api_host" mapstructure:"api_host"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"` // comma-separated for rotation

	// Google Programmable Search engine id (cx)
	EngineID string `json:"engine_id,omitempty" yaml:"engine_id,omitempty" mapstructure:"engine_id"`

	// SearXNG Basic Auth
	BasicAuthUsername string `json:"basic_auth_username,omitempty" yaml:"basic_auth_username,omitempty" mapstructure:"basic_auth_username"`
	BasicAuthPassword string `json:"basic_auth_password,omitempty" yaml:"basic_auth_password,omitempty" mapstructure:"basic_auth_password"`

	// Optional settings
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"` // seconds, transport ceiling

	// Dedicated budget; zero means the provider draws on the shared quota
	DailyLimit   int64 `json:"daily_limit,omitempty" yaml:"daily_limit,omitempty" mapstructure:"daily_limit"`
	MonthlyLimit int64 `json:"monthly_limit,omitempty" yaml:"monthly_limit,omitempty" mapstructure:"monthly_limit"`
}

// ApplyDefaults fills in the public API host for hosted providers
func (c *ProviderConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = string(c.ID)
	}
	if c.APIHost == "" {
		c.APIHost = defaultHosts[c.ID]
	}
	c.APIHost = strings.TrimRight(c.APIHost, "/")
}

// HasOwnQuota reports whether the provider is configured with a dedicated budget
func (c *ProviderConfig) HasOwnQuota() bool {
	return c.DailyLimit > 0 && c.MonthlyLimit > 0
}

// Validate validates the provider configuration
func (c *ProviderConfig) Validate() error {
	if c.ID == "" {
		return ErrInvalidProviderID
	}
	if c.Name == "" {
		return ErrInvalidProviderName
	}
	if c.APIHost == "" {
		return ErrInvalidAPIHost
	}

	switch c.ID {
	case ProviderSearXNG:
		// SearXNG doesn't require API key but may need basic auth
		if c.BasicAuthUsername != "" && c.BasicAuthPassword == "" {
			return ErrMissingBasicAuthPassword
		}
	case ProviderGoogle:
		if c.APIKey == "" {
			return ErrMissingAPIKey
		}
		if c.EngineID == "" {
			return ErrMissingEngineID
		}
	default:
		if c.APIKey == "" {
			return ErrMissingAPIKey
		}
	}

	return nil
}
