package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WebConfig is the subset of the exporter's --web.config.file schema the
// tool understands. Unknown top-level keys are rejected.
type WebConfig struct {
	TLSServerConfig  map[string]interface{} `yaml:"tls_server_config,omitempty"`
	HTTPServerConfig map[string]interface{} `yaml:"http_server_config,omitempty"`
	BasicAuthUsers   map[string]string      `yaml:"basic_auth_users,omitempty"`
}

const webConfigHeader = `Web configuration for node_exporter.
See https://prometheus.io/docs/prometheus/latest/configuration/https/
Uncomment tls_server_config or basic_auth_users to enable TLS or authentication.`

// DefaultWebConfig renders the web config written on first install.
func DefaultWebConfig() ([]byte, error) {
	doc := &yaml.Node{
		Kind: yaml.DocumentNode,
		Content: []*yaml.Node{{
			Kind:        yaml.MappingNode,
			HeadComment: webConfigHeader,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: "http_server_config"},
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "http2"},
						{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"},
					},
				},
			},
		}},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to render web config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render web config: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseWebConfig parses a web config file strictly. An empty file is valid.
func ParseWebConfig(data []byte) (WebConfig, error) {
	var cfg WebConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return WebConfig{}, fmt.Errorf("invalid web config: %w", err)
	}
	return cfg, nil
}
