package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		Bank    string `yaml:"bank"`
		BankDir string `yaml:"bank_dir"`
		TopN    int    `yaml:"top_n"`
		TTL     string `yaml:"ttl"`
		Idle    string `yaml:"idle"`
	} `yaml:"quiz"`
	Cookie struct {
		Name   string `yaml:"name"`
		Secret string `yaml:"secret"`
	} `yaml:"cookie"`
}

// Load reads YAML config from path. A missing file yields the zero config so
// the service can start on defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TopN returns the number of highlighted roles, defaulting to 3.
func (c Config) TopN() int {
	if c.Quiz.TopN == 0 {
		return 3
	}
	return c.Quiz.TopN
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
