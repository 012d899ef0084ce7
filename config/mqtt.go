package config

import (
	"fmt"

	"github.com/harvestplan/harvestplan/infra/mqtt"
)

// MQTTConfig publishes run snapshots to an MQTT broker when enabled.
type MQTTConfig struct {
	Enabled bool        `json:"enabled"`
	Client  mqtt.Config `json:"client"`
	// TopicPrefix leads every topic; defaults to "harvestplan".
	TopicPrefix string `json:"topic_prefix"`
	// MaxPerSecond throttles snapshot publishes; final snapshots always
	// go through.
	MaxPerSecond float64 `json:"max_per_second"`
	Burst        int     `json:"burst"`
}

// SetDefaults applies sane defaults.
func (c *MQTTConfig) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "harvestplan"
	}
	if c.MaxPerSecond == 0 {
		c.MaxPerSecond = 10
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
}

// Validate checks mandatory fields when the publisher is enabled.
func (c MQTTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Client.Broker == "" {
		return fmt.Errorf("mqtt enabled without broker")
	}
	if c.MaxPerSecond < 0 {
		return fmt.Errorf("max_per_second must not be negative, got %g", c.MaxPerSecond)
	}
	return nil
}

// Publisher converts the section into the publisher's own config.
func (c MQTTConfig) Publisher() mqtt.PublisherConfig {
	return mqtt.PublisherConfig{
		Client:       c.Client,
		TopicPrefix:  c.TopicPrefix,
		MaxPerSecond: c.MaxPerSecond,
		Burst:        c.Burst,
	}
}
