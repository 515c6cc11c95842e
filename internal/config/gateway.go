package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway is the YAML file naming the datasources the gateway may query and
// the API keys allowed to do so.
type Gateway struct {
	// Datasources maps a public name to a connection URL.
	Datasources map[string]string `yaml:"datasources"`
	Keys        []APIKey          `yaml:"keys"`
	Limits      Limits            `yaml:"limits"`
}

// APIKey is a key identifier plus the bcrypt hash of its secret. The secret
// itself never appears in the file.
type APIKey struct {
	ID   string `yaml:"id"`
	Hash string `yaml:"hash"`
}

// Limits bound what one request may cost.
type Limits struct {
	// MaxRows caps rows returned by a one-shot query.
	MaxRows int64 `yaml:"max_rows"`
	// QueryTimeout bounds a single streamed query.
	QueryTimeout Duration `yaml:"query_timeout"`
	// MaxConnections caps open connections per datasource.
	MaxConnections int64 `yaml:"max_connections"`
}

// Duration parses YAML strings like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadGateway reads and validates a gateway file.
func LoadGateway(path string) (*Gateway, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gateway file: %w", err)
	}
	var gw Gateway
	if err := yaml.Unmarshal(data, &gw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if len(gw.Datasources) == 0 {
		return nil, errors.New("gateway file names no datasources")
	}
	for name, url := range gw.Datasources {
		if name == "" || url == "" {
			return nil, errors.New("datasource entries need both a name and a URL")
		}
	}
	for i, key := range gw.Keys {
		if key.ID == "" || key.Hash == "" {
			return nil, fmt.Errorf("key %d needs both id and hash", i)
		}
	}

	if gw.Limits.MaxRows <= 0 {
		gw.Limits.MaxRows = 10000
	}
	if gw.Limits.QueryTimeout <= 0 {
		gw.Limits.QueryTimeout = Duration(30 * time.Second)
	}
	if gw.Limits.MaxConnections <= 0 {
		gw.Limits.MaxConnections = 4
	}
	return &gw, nil
}
