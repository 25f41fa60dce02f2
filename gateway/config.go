package gateway

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// SubgraphSetting describes one subgraph the gateway can dispatch
// fetches to: its host and the SDL used to extract @key fields for
// entity fetches. SDL is sourced from SchemaFiles when given; otherwise
// the gateway fetches it from Host itself via { _service { sdl } }.
type SubgraphSetting struct {
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"`
	SchemaFiles []string `yaml:"schema_files"`
}

// SDLFetchSetting configures the retry behavior for subgraphs whose
// SDL is fetched over HTTP rather than read from SchemaFiles.
type SDLFetchSetting struct {
	Attempts int `yaml:"attempts" default:"3"`
}

type TracingSetting struct {
	Enable bool `yaml:"enable" default:"false"`
}

type OpentelemetrySetting struct {
	Tracing TracingSetting `yaml:"tracing"`
}

// Option configures a gateway instance. It is the YAML shape of
// gateway.yaml.
type Option struct {
	Endpoint                    string               `yaml:"endpoint"`
	ServiceName                 string               `yaml:"service_name"`
	Port                        int                  `yaml:"port"`
	TimeoutDuration             string               `yaml:"timeout_duration" default:"5s"`
	SubgraphTimeoutDuration     string               `yaml:"subgraph_timeout_duration" default:"3s"`
	EnableHangOverRequestHeader bool                 `yaml:"enable_hang_over_request_header" default:"true"`
	EnableDebugChecks           bool                 `yaml:"enable_debug_checks" default:"false"`
	HeaderAllowlist             []string             `yaml:"header_allowlist"`
	Subgraphs                   []SubgraphSetting    `yaml:"subgraphs"`
	SDLFetch                    SDLFetchSetting      `yaml:"sdl_fetch"`
	Opentelemetry               OpentelemetrySetting `yaml:"opentelemetry"`
}

// Timeout parses TimeoutDuration, defaulting to 5s when unset.
func (o Option) Timeout() (time.Duration, error) {
	if o.TimeoutDuration == "" {
		return 5 * time.Second, nil
	}
	return time.ParseDuration(o.TimeoutDuration)
}

// SubgraphTimeout parses SubgraphTimeoutDuration, defaulting to 3s when unset.
func (o Option) SubgraphTimeout() (time.Duration, error) {
	if o.SubgraphTimeoutDuration == "" {
		return 3 * time.Second, nil
	}
	return time.ParseDuration(o.SubgraphTimeoutDuration)
}

// LoadOption reads and parses a gateway.yaml-shaped config file.
func LoadOption(path string) (*Option, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: opening settings file: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("gateway: reading settings file: %w", err)
	}

	var opt Option
	if err := yaml.Unmarshal(b, &opt); err != nil {
		return nil, fmt.Errorf("gateway: unmarshalling settings: %w", err)
	}

	return &opt, nil
}
