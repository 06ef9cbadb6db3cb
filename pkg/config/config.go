package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default filesystem locations inside the workload containers.
const (
	DefaultRedisConfigPath    = "/etc/redis/redis.conf"
	DefaultSentinelConfigPath = "/etc/redis/sentinel.conf"
	DefaultWorkingDir         = "/var/lib/redis"
	DefaultLogFile            = "/var/log/redis/redis.log"
	DefaultCertDir            = "/var/lib/redis/certs"
)

// Options is the recognized set of user-facing configuration options, as
// delivered by the platform config store. Unrecognized keys are rejected by
// the YAML decoder.
type Options struct {
	// EnableTLS gates injection of TLS directives into both rendered
	// configurations. The certificate bundle must be complete when set.
	EnableTLS bool `yaml:"enable-tls"`

	// Tuning options passed through verbatim to the rendered redis
	// configuration. Empty values are omitted.
	MaxMemory       string `yaml:"maxmemory"`
	MaxMemoryPolicy string `yaml:"maxmemory-policy"`
	TCPKeepAlive    int    `yaml:"tcp-keepalive"`
}

// TuningDirectives returns the pass-through directives in a fixed order so
// rendering stays deterministic.
func (o *Options) TuningDirectives() [][2]string {
	var d [][2]string
	if o.MaxMemory != "" {
		d = append(d, [2]string{"maxmemory", o.MaxMemory})
	}
	if o.MaxMemoryPolicy != "" {
		d = append(d, [2]string{"maxmemory-policy", o.MaxMemoryPolicy})
	}
	if o.TCPKeepAlive > 0 {
		d = append(d, [2]string{"tcp-keepalive", strconv.Itoa(o.TCPKeepAlive)})
	}
	return d
}

// LoadOptions reads the options file. A missing file yields the defaults:
// the platform only writes the file once the user sets an option.
func LoadOptions(path string) (*Options, error) {
	opts := &Options{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return opts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}
	return opts, nil
}

// Resources are the file resources attached by the user. The image reference
// is consumed by the platform when it creates the workload containers; the
// certificate files feed the TLS material manager.
type Resources struct {
	Image      string `yaml:"image"`
	CACertFile string `yaml:"ca-cert-file"`
	CertFile   string `yaml:"cert-file"`
	KeyFile    string `yaml:"key-file"`
}

// Operator is the per-unit operator configuration: identity, data locations
// and collaborator endpoints. It is static for the lifetime of the process.
type Operator struct {
	AppName     string `yaml:"app-name"`
	UnitOrdinal int    `yaml:"unit-ordinal"`
	UnitAddress string `yaml:"unit-address"`

	DataDir     string `yaml:"data-dir"`
	PeersFile   string `yaml:"peers-file"`
	OptionsFile string `yaml:"options-file"`

	RedisSocket    string `yaml:"redis-pebble-socket"`
	SentinelSocket string `yaml:"sentinel-pebble-socket"`

	Resources Resources `yaml:"resources"`

	MetricsAddr string `yaml:"metrics-addr"`
}

// Load reads and validates the operator configuration file.
func Load(path string) (*Operator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operator config: %w", err)
	}

	cfg := &Operator{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse operator config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and fills defaults.
func (c *Operator) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app-name is required")
	}
	if c.UnitOrdinal < 0 {
		return fmt.Errorf("unit-ordinal must be >= 0, got %d", c.UnitOrdinal)
	}
	if c.UnitAddress == "" {
		return fmt.Errorf("unit-address is required")
	}
	if c.Resources.Image == "" {
		return fmt.Errorf("image resource is required")
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/redkeeper"
	}
	if c.PeersFile == "" {
		c.PeersFile = c.DataDir + "/peers.yaml"
	}
	if c.OptionsFile == "" {
		c.OptionsFile = c.DataDir + "/options.yaml"
	}
	if c.RedisSocket == "" {
		c.RedisSocket = "/charm/containers/redis/pebble.sock"
	}
	if c.SentinelSocket == "" {
		c.SentinelSocket = "/charm/containers/sentinel/pebble.sock"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = "127.0.0.1:9121"
	}
	return nil
}
