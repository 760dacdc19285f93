package chains

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainConfig describes one network and its candidate RPC endpoints in
// priority order. It is never mutated once a Registry is built.
type ChainConfig struct {
	ChainID         int      `yaml:"chainId" json:"chain_id"`
	Name            string   `yaml:"name" json:"name"`
	RPCURLs         []string `yaml:"rpcUrls" json:"rpc_urls"`
	SupportsEIP1559 bool     `yaml:"supportsEip1559" json:"supports_eip1559"`
}

func (c ChainConfig) clone() ChainConfig {
	c.RPCURLs = append([]string(nil), c.RPCURLs...)
	return c
}

// Registry maps network ids (eip155:<chainId>) to chain configs.
type Registry struct {
	networks map[string]ChainConfig
}

// NewRegistry validates and copies the given table.
func NewRegistry(networks map[string]ChainConfig) (*Registry, error) {
	r := &Registry{networks: make(map[string]ChainConfig, len(networks))}
	for id, cfg := range networks {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("empty network id")
		}
		if cfg.ChainID <= 0 {
			return nil, fmt.Errorf("network %s: chain id must be positive", id)
		}
		if len(cfg.RPCURLs) == 0 {
			return nil, fmt.Errorf("network %s: no rpc urls configured", id)
		}
		urls := make([]string, 0, len(cfg.RPCURLs))
		for _, u := range cfg.RPCURLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.RPCURLs = urls
		r.networks[id] = cfg
	}
	return r, nil
}

// Get returns a copy of the config for networkID.
func (r *Registry) Get(networkID string) (ChainConfig, bool) {
	cfg, ok := r.networks[networkID]
	if !ok {
		return ChainConfig{}, false
	}
	return cfg.clone(), true
}

// IsSupported reports whether networkID is configured.
func (r *Registry) IsSupported(networkID string) bool {
	_, ok := r.networks[networkID]
	return ok
}

// Networks returns the configured network ids, sorted.
func (r *Registry) Networks() []string {
	ids := make([]string, 0, len(r.networks))
	for id := range r.networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NetworkID formats the CAIP-2 style id used as registry key.
func NetworkID(chainID int) string {
	return fmt.Sprintf("eip155:%d", chainID)
}

type fileFormat struct {
	Networks map[string]ChainConfig `yaml:"networks"`
}

// Parse reads a YAML registry document.
func Parse(data []byte) (*Registry, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse chains file: %w", err)
	}
	if len(doc.Networks) == 0 {
		return nil, fmt.Errorf("chains file defines no networks")
	}
	return NewRegistry(doc.Networks)
}

// LoadFile reads a YAML registry from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains file: %w", err)
	}
	return Parse(data)
}
