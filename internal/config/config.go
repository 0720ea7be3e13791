// Package config loads and validates the smartfan YAML configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"smartfan/internal/fan"
	"smartfan/internal/ipmi"
	"smartfan/internal/logger"
)

// Sender types.
const (
	SenderNone  = "none"
	SenderFile  = "file"
	SenderMQTT  = "mqtt"
	SenderRedis = "redis"
	SenderKafka = "kafka"
)

// Config is the root of conf/smartfan.yaml.
type Config struct {
	IPMI       IPMIConfig       `yaml:"ipmi"`
	FanSpeeds  []FanSpeed       `yaml:"fan_speeds"`
	Controller ControllerConfig `yaml:"controller"`
	Logging    logger.Config    `yaml:"logging"`
	Sender     SenderConfig     `yaml:"sender"`
}

// IPMIConfig describes how to reach the BMC.
type IPMIConfig struct {
	Binary         string        `yaml:"binary"`
	Mode           string        `yaml:"mode"`
	Interface      string        `yaml:"interface"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// FanSpeed is one curve entry: speed applies to [temp_range[0], temp_range[1]).
type FanSpeed struct {
	TempRange []float64 `yaml:"temp_range"`
	Speed     int       `yaml:"speed"`
}

// ControllerConfig tunes the control loop.
type ControllerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
}

// SenderConfig selects where cycle reports are published.
type SenderConfig struct {
	Type       string      `yaml:"type"`
	File       FileConfig  `yaml:"file"`
	MQTT       MQTTConfig  `yaml:"mqtt"`
	Redis      RedisConfig `yaml:"redis"`
	Kafka      KafkaConfig `yaml:"kafka"`
	SOCKSProxy SOCKSConfig `yaml:"socks_proxy"`
}

// FileConfig contains settings for the JSON lines sink.
type FileConfig struct {
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Console    bool   `yaml:"console"`
	Pretty     bool   `yaml:"pretty"`
}

// MQTTConfig contains settings for the MQTT sink.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	Retain         bool          `yaml:"retain"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// RedisConfig contains settings for the Redis sink.
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	KeyPrefix     string        `yaml:"key_prefix"`
	HistoryLength int64         `yaml:"history_length"`
	Timeout       time.Duration `yaml:"timeout"`
}

// KafkaConfig contains Kafka producer settings.
type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	Compression    string        `yaml:"compression"`
	RequiredAcks   int           `yaml:"required_acks"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	FlushFrequency time.Duration `yaml:"flush_frequency"`
	FlushMessages  int           `yaml:"flush_messages"`
	Timeout        time.Duration `yaml:"timeout"`
	EnableTLS      bool          `yaml:"enable_tls"`
	TLSCertFile    string        `yaml:"tls_cert_file"`
	TLSKeyFile     string        `yaml:"tls_key_file"`
	TLSCAFile      string        `yaml:"tls_ca_file"`
	SASLEnabled    bool          `yaml:"sasl_enabled"`
	SASLMechanism  string        `yaml:"sasl_mechanism"`
	SASLUser       string        `yaml:"sasl_user"`
	SASLPassword   string        `yaml:"sasl_password"`
}

// SOCKSConfig routes sink connections through a SOCKS5 proxy when Host is set.
type SOCKSConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultConfig returns a configuration with every optional field filled in.
// The fan curve has no default.
func DefaultConfig() *Config {
	return &Config{
		IPMI: IPMIConfig{
			Binary:         "ipmitool",
			Mode:           string(ipmi.ModeRemote),
			Interface:      "lanplus",
			CommandTimeout: 30 * time.Second,
		},
		Controller: ControllerConfig{
			Interval:     10 * time.Second,
			CycleTimeout: 60 * time.Second,
		},
		Logging: logger.DefaultConfig(),
		Sender: SenderConfig{
			Type: SenderNone,
			File: FileConfig{
				FilePath:   "log/smartfan/cycles.jsonl",
				MaxSizeMB:  50,
				MaxBackups: 3,
			},
			MQTT: MQTTConfig{
				Broker:         "tcp://localhost:1883",
				ClientID:       "smartfan",
				TopicPrefix:    "smartfan",
				QoS:            1,
				Retain:         true,
				ConnectTimeout: 10 * time.Second,
			},
			Redis: RedisConfig{
				Addr:          "localhost:6379",
				KeyPrefix:     "smartfan",
				HistoryLength: 1000,
				Timeout:       5 * time.Second,
			},
			Kafka: KafkaConfig{
				Brokers:        []string{"localhost:9092"},
				Topic:          "smartfan-cycles",
				Compression:    "snappy",
				RequiredAcks:   1,
				MaxRetries:     3,
				RetryBackoff:   100 * time.Millisecond,
				FlushFrequency: 500 * time.Millisecond,
				FlushMessages:  100,
				Timeout:        10 * time.Second,
			},
		},
	}
}

// NormalizeMode maps the accepted spellings of the access mode to ipmi.Mode.
// "in-band" is the spelling accepted on the command line.
func NormalizeMode(s string) (ipmi.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "remote", "lan", "lanplus", "out-of-band":
		return ipmi.ModeRemote, nil
	case "local", "in-band", "inband":
		return ipmi.ModeLocal, nil
	default:
		return "", fmt.Errorf("unknown ipmi mode %q (supported: remote, local, in-band)", s)
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs *multierror.Error

	mode, err := NormalizeMode(c.IPMI.Mode)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	if mode == ipmi.ModeRemote && c.IPMI.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf("ipmi.host is required in remote mode"))
	}
	if c.IPMI.CommandTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("ipmi.command_timeout must be > 0"))
	}

	for i, fs := range c.FanSpeeds {
		if len(fs.TempRange) != 2 {
			errs = multierror.Append(errs, fmt.Errorf("fan_speeds[%d].temp_range must have exactly two values", i))
			continue
		}
		if fs.TempRange[0] >= fs.TempRange[1] {
			errs = multierror.Append(errs, fmt.Errorf("fan_speeds[%d].temp_range low %g must be below high %g", i, fs.TempRange[0], fs.TempRange[1]))
		}
		if fs.Speed < 0 || fs.Speed > 100 {
			errs = multierror.Append(errs, fmt.Errorf("fan_speeds[%d].speed %d out of range 0-100", i, fs.Speed))
		}
	}

	if c.Controller.Interval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("controller.interval must be > 0"))
	}
	if c.Controller.CycleTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("controller.cycle_timeout must be > 0"))
	}

	switch strings.ToLower(c.Sender.Type) {
	case "", SenderNone, SenderFile, SenderMQTT, SenderRedis, SenderKafka:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown sender type %q (supported: none, file, mqtt, redis, kafka)", c.Sender.Type))
	}

	return errs.ErrorOrNil()
}

// FanCurve converts fan_speeds into the controller's curve, preserving order.
// Call after Validate; malformed entries are skipped.
func (c *Config) FanCurve() fan.Curve {
	curve := make(fan.Curve, 0, len(c.FanSpeeds))
	for _, fs := range c.FanSpeeds {
		if len(fs.TempRange) != 2 {
			continue
		}
		curve = append(curve, fan.CurveEntry{Low: fs.TempRange[0], High: fs.TempRange[1], Speed: fs.Speed})
	}
	return curve
}

// IPMIOptions converts the ipmi section for ipmi.NewTool.
func (c *Config) IPMIOptions() ipmi.Options {
	mode, _ := NormalizeMode(c.IPMI.Mode)
	return ipmi.Options{
		Binary:    c.IPMI.Binary,
		Mode:      mode,
		Interface: c.IPMI.Interface,
		Host:      c.IPMI.Host,
		Port:      c.IPMI.Port,
		Username:  c.IPMI.Username,
		Password:  c.IPMI.Password,
		Timeout:   c.IPMI.CommandTimeout,
	}
}
