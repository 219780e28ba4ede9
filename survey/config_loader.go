package survey

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the full configuration file
type Config struct {
	Registration RegistrationConfig `yaml:"registration" json:"registration"`
	Ingest       IngestOptions      `yaml:"ingest" json:"ingest"`
	Output       OutputConfig       `yaml:"output" json:"output"`
	MQTT         MQTTConfig         `yaml:"mqtt" json:"mqtt"`
}

// RegistrationConfig holds the outlier filter options as written in YAML
type RegistrationConfig struct {
	ResidualThreshold float64  `yaml:"residualThreshold" json:"residualThreshold"`
	MinSampleSize     int      `yaml:"minSampleSize,omitempty" json:"minSampleSize,omitempty"`
	MaxTrials         int      `yaml:"maxTrials,omitempty" json:"maxTrials,omitempty"`
	Confidence        float64  `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	OutlierFraction   *float64 `yaml:"outlierFraction,omitempty" json:"outlierFraction,omitempty"` // Omit for 0.5; 0 trusts every pair
	Seed              *int64   `yaml:"seed,omitempty" json:"seed,omitempty"`                       // Omit for system entropy
	Workers           int      `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// OutputConfig selects the artifacts written after a run
type OutputConfig struct {
	Drawing     string  `yaml:"drawing,omitempty" json:"drawing,omitempty"`         // .svg or .png draw-back
	Report      string  `yaml:"report,omitempty" json:"report,omitempty"`           // JSON result file
	GeoJSON     string  `yaml:"geojson,omitempty" json:"geojson,omitempty"`         // GeoJSON residual report
	Chart       string  `yaml:"chart,omitempty" json:"chart,omitempty"`             // Residual bar chart
	GridSpacing float64 `yaml:"gridSpacing,omitempty" json:"gridSpacing,omitempty"` // Drawing grid spacing (default 10)
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	QoS           *byte  `yaml:"qos,omitempty" json:"qos,omitempty"`       // Omit for 1
	Retain        *bool  `yaml:"retain,omitempty" json:"retain,omitempty"` // Omit for true
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	f := DefaultFilterConfig()
	return &Config{
		Registration: RegistrationConfig{
			ResidualThreshold: f.ResidualThreshold,
			MinSampleSize:     f.MinSampleSize,
			MaxTrials:         f.MaxTrials,
			Confidence:        f.Confidence,
			OutlierFraction:   f.OutlierFraction,
		},
		Ingest: DefaultIngestOptions(),
		Output: OutputConfig{GridSpacing: 10},
	}
}

// FilterConfig converts the YAML options into a FilterConfig
func (rc RegistrationConfig) FilterConfig() FilterConfig {
	return FilterConfig{
		ResidualThreshold: rc.ResidualThreshold,
		MinSampleSize:     rc.MinSampleSize,
		MaxTrials:         rc.MaxTrials,
		Confidence:        rc.Confidence,
		OutlierFraction:   rc.OutlierFraction,
		Seed:              rc.Seed,
		Workers:           rc.Workers,
	}
}

// Validate checks the registration options
func (rc RegistrationConfig) Validate() error {
	if rc.ResidualThreshold <= 0 {
		return fmt.Errorf("registration.residualThreshold must be positive")
	}
	if rc.MinSampleSize != 0 && rc.MinSampleSize < minimalSample {
		return fmt.Errorf("registration.minSampleSize must be at least %d", minimalSample)
	}
	if rc.MaxTrials < 0 {
		return fmt.Errorf("registration.maxTrials must not be negative")
	}
	if rc.Confidence != 0 && (rc.Confidence <= 0 || rc.Confidence >= 1) {
		return fmt.Errorf("registration.confidence must be in (0, 1)")
	}
	if f := rc.OutlierFraction; f != nil && (*f < 0 || *f >= 1) {
		return fmt.Errorf("registration.outlierFraction must be in [0, 1)")
	}
	return nil
}

// LoadConfig loads the configuration from a YAML file.
// Missing sections keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Registration.Validate(); err != nil {
		return nil, err
	}
	if q := config.MQTT.QoS; q != nil && *q > 2 {
		return nil, fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if config.Ingest.LabelTolerance < 0 {
		return nil, fmt.Errorf("ingest.labelTolerance must not be negative")
	}
	switch config.Ingest.LabelField {
	case "", LabelFromDescription, LabelFromNumber:
	default:
		return nil, fmt.Errorf("ingest.labelField must be %q or %q", LabelFromDescription, LabelFromNumber)
	}

	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides MQTT settings from MQTT_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		c.MQTT.ClientID = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("MQTT_PUBLISH_PREFIX"); v != "" {
		c.MQTT.PublishPrefix = v
	}
}
