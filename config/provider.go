package config

import "go.uber.org/fx"

func NewProvider(customConfig *Config) fx.Option {
	if customConfig != nil {
		return fx.Provide(func() (*Config, error) {
			if err := customConfig.Validate(); err != nil {
				return nil, err
			}
			return customConfig, nil
		})
	}

	return fx.Provide(func() *Config {
		cfg := &Config{}
		if err := LoadConfig(cfg); err != nil {
			panic(err)
		}
		return cfg
	})
}
