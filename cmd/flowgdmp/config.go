package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"flowgdmp/flowgraph"
	"flowgdmp/registry"
)

// Config is the tool configuration, read from config.yml and overridden by
// environment and flags.
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	// Service is the registry name to query.
	Service string `yaml:"service"`
	// Balancer picks among several hosts of one service: roundrobin or weighted.
	Balancer string `yaml:"balancer"`
}

// RegistryConfig locates the service manager.
type RegistryConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

const registryEnv = "FLOWGDMP_REGISTRY"

func defaultConfig() Config {
	return Config{
		Registry: RegistryConfig{
			Endpoints:   []string{"127.0.0.1:2379"},
			DialTimeout: registry.DefaultDialTimeout,
		},
		Service: flowgraph.ServiceName,
	}
}

func defaultConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "flowgdmp", "config.yml")
}

// loadConfig reads path on top of the defaults. A missing file is only an
// error when the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse %q", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return cfg, errors.Wrapf(err, "failed to read %q", path)
	}

	if env := os.Getenv(registryEnv); env != "" {
		cfg.Registry.Endpoints = splitEndpoints(env)
	}
	return cfg, nil
}

func splitEndpoints(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
