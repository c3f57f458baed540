// Package config loads service configuration from YAML files, .env files,
// and environment variables, in that order of precedence from lowest to
// highest.
//
// Services embed ServiceConfig in their own config struct and call Load:
//
//	type registryConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Registry registry.Config `yaml:"registry" mapstructure:"registry"`
//	}
package config
