// Package ethereum provides the connection configuration, error taxonomy and
// RPC metrics shared by the provider and dev-node packages.
package ethereum

import (
	"fmt"
	"net/url"
)

// EnvProviderURI is the environment convention for injecting a provider
// endpoint from outside. When set it wins over every other transport.
const EnvProviderURI = "NODE_PROVIDER_URI"

// Config describes how to reach one execution node.
type Config struct {
	// Name is a human-friendly label used in logs and metrics.
	Name string `yaml:"name" default:"local"`
	// URI is the HTTP(S) endpoint of the node.
	URI string `yaml:"uri" default:"http://localhost:8545"`
	// IPCPath is an optional filesystem socket. When the file exists it is
	// preferred over the HTTP endpoint.
	IPCPath string `yaml:"ipcPath"`
	// ChainID is the expected network identity. When non-zero, a node
	// reporting a different chain id is a fatal configuration error.
	ChainID uint64 `yaml:"chainId"`
	// NodeHeaders are extra HTTP headers sent with every RPC request.
	NodeHeaders map[string]string `yaml:"nodeHeaders"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("uri is required")
	}

	u, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("invalid uri %q: %w", c.URI, err)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}

	return nil
}

// CleanURI returns the endpoint with any user credentials stripped, suitable
// for logging.
func (c *Config) CleanURI() string {
	u, err := url.Parse(c.URI)
	if err != nil {
		return c.URI
	}

	u.User = nil

	return u.String()
}
