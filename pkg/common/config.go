package common

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed config.default.yaml
var defaultConfig []byte

const (
	configPathEnv = "CONFIG_PATH"
	configJSONEnv = "CONFIG_JSON"
)

// ConfigManager layers the built-in defaults, an optional YAML config file
// (CONFIG_PATH), and an optional inline JSON override (CONFIG_JSON), then
// unmarshals the result into T.
type ConfigManager[T any] struct {
	kf     *koanf.Koanf
	config T
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	kf := koanf.New(".")

	if err := kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		if err := kf.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if inline := os.Getenv(configJSONEnv); inline != "" {
		if err := kf.Load(rawbytes.Provider([]byte(inline)), json.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load inline config override: %w", err)
		}
	}

	cm := &ConfigManager[T]{kf: kf}
	if err := kf.UnmarshalWithConf("", &cm.config, koanf.UnmarshalConf{Tag: "key"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cm, nil
}

// NewConfigManagerFromBytes builds a manager from defaults plus the given
// YAML overlay. Used by checkconfig and tests.
func NewConfigManagerFromBytes[T any](overlay []byte) (*ConfigManager[T], error) {
	kf := koanf.New(".")

	if err := kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if len(overlay) > 0 {
		if err := kf.Load(rawbytes.Provider(overlay), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config overlay: %w", err)
		}
	}

	cm := &ConfigManager[T]{kf: kf}
	if err := kf.UnmarshalWithConf("", &cm.config, koanf.UnmarshalConf{Tag: "key"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cm, nil
}

// GetConfig returns the resolved configuration
func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}
