package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Provider describes one third-party integration reachable through an
// OAuth authorize redirect.
type Provider struct {
	Name        string   `mapstructure:"name"`
	DisplayName string   `mapstructure:"display_name"`
	AuthURL     string   `mapstructure:"auth_url"`
	TokenURL    string   `mapstructure:"token_url"`
	ClientID    string   `mapstructure:"client_id"`
	Scopes      []string `mapstructure:"scopes"`
	// PlatformAuthorize makes the platform issue the authorize URL and
	// state instead of the console building them from this entry.
	PlatformAuthorize bool `mapstructure:"platform_authorize"`
}

type providerFile struct {
	Providers []Provider `mapstructure:"providers"`
}

// DefaultProviders is the built-in catalogue used when no providers file exists.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Name:        "github",
			DisplayName: "GitHub",
			AuthURL:     "https://github.com/login/oauth/authorize",
			TokenURL:    "https://github.com/login/oauth/access_token",
			Scopes:      []string{"repo", "read:org"},
		},
		{
			Name:        "gitlab",
			DisplayName: "GitLab",
			AuthURL:     "https://gitlab.com/oauth/authorize",
			TokenURL:    "https://gitlab.com/oauth/token",
			Scopes:      []string{"read_api", "read_repository"},
		},
		{
			Name:        "bitbucket",
			DisplayName: "Bitbucket",
			AuthURL:     "https://bitbucket.org/site/oauth2/authorize",
			TokenURL:    "https://bitbucket.org/site/oauth2/access_token",
			Scopes:      []string{"repository", "account"},
		},
		{
			Name:        "azure_devops",
			DisplayName: "Azure DevOps",
			AuthURL:     "https://app.vssps.visualstudio.com/oauth2/authorize",
			TokenURL:    "https://app.vssps.visualstudio.com/oauth2/token",
			Scopes:      []string{"vso.code", "vso.project"},
		},
		{
			Name:        "huggingface",
			DisplayName: "Hugging Face",
			AuthURL:     "https://huggingface.co/oauth/authorize",
			TokenURL:    "https://huggingface.co/oauth/token",
			Scopes:      []string{"openid", "profile", "read-repos"},
		},
		{
			Name:        "slack",
			DisplayName: "Slack",
			AuthURL:     "https://slack.com/oauth/v2/authorize",
			TokenURL:    "https://slack.com/api/oauth.v2.access",
			Scopes:      []string{"incoming-webhook", "chat:write"},
		},
	}
}

// LoadProviders reads the provider catalogue from a YAML file using Viper.
// A missing file yields the built-in defaults. Empty client ids are filled
// from <NAME>_CLIENT_ID environment variables.
func LoadProviders(path string) ([]Provider, error) {
	providers, err := readProviders(path)
	if err != nil {
		return nil, err
	}

	for i := range providers {
		p := &providers[i]
		if p.Name == "" {
			return nil, fmt.Errorf("provider %d in %s has no name", i, path)
		}
		if p.AuthURL == "" {
			return nil, fmt.Errorf("provider %q has no auth_url", p.Name)
		}
		if p.DisplayName == "" {
			p.DisplayName = p.Name
		}
		if p.ClientID == "" {
			p.ClientID = os.Getenv(strings.ToUpper(p.Name) + "_CLIENT_ID")
		}
	}

	return providers, nil
}

func readProviders(path string) ([]Provider, error) {
	if path == "" {
		return DefaultProviders(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return DefaultProviders(), nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return DefaultProviders(), nil
		}
		return nil, fmt.Errorf("reading providers %s: %w", path, err)
	}

	var file providerFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("parsing providers %s: %w", path, err)
	}

	if len(file.Providers) == 0 {
		return DefaultProviders(), nil
	}

	return file.Providers, nil
}
