package engine

import (
	"os"
	"strings"
)

// Environment variables consulted when no explicit API key is given.
const (
	EnvInfuraAPIKey    = "INFURA_API_KEY"
	EnvAlchemyAPIKey   = "ALCHEMY_API_KEY"
	EnvQuickNodeAPIKey = "QUICKNODE_API_KEY"
	EnvCustomAPIKey    = "CUSTOM_RPC_API_KEY"
)

// apiKeyQueryParam carries the key for hosts without a path convention.
const apiKeyQueryParam = "apikey"

type keyConvention struct {
	hostFragment string
	envVar       string
}

// Providers that expect the key as the last path segment.
var pathKeyProviders = []keyConvention{
	{hostFragment: "infura.io", envVar: EnvInfuraAPIKey},
	{hostFragment: "alchemy.", envVar: EnvAlchemyAPIKey},
	{hostFragment: "quicknode.pro", envVar: EnvQuickNodeAPIKey},
}

// URLBuilder turns a raw endpoint URL plus an optional API key into the URL
// to dial.
type URLBuilder struct {
	lookupEnv func(string) (string, bool)
}

// NewURLBuilder returns a builder reading keys from the process environment.
func NewURLBuilder() *URLBuilder {
	return &URLBuilder{lookupEnv: os.LookupEnv}
}

// Build applies apiKey (or the key resolved from the environment when apiKey
// is nil) using the provider's convention. Without any key the trimmed URL
// is returned as is.
func (b *URLBuilder) Build(rawURL string, apiKey *string) (string, error) {
	u, err := validateEndpointURL(rawURL)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(u.Hostname())
	convention, pathKey := matchProvider(host)

	var key string
	if apiKey != nil {
		key = strings.TrimSpace(*apiKey)
	} else if v, ok := b.lookupEnv(convention.envVar); ok {
		key = strings.TrimSpace(v)
	}
	if key == "" {
		return strings.TrimSpace(rawURL), nil
	}

	if pathKey {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + key
		u.RawPath = ""
	} else {
		q := u.Query()
		q.Set(apiKeyQueryParam, key)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func matchProvider(host string) (keyConvention, bool) {
	for _, p := range pathKeyProviders {
		if strings.Contains(host, p.hostFragment) {
			return p, true
		}
	}
	return keyConvention{envVar: EnvCustomAPIKey}, false
}
