// Package config provides configuration loading for the Tunly gateway and
// agent binaries.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// InitGatewayViper initializes Viper for the gateway binary. If configFile
// is empty, Viper falls back to env vars and flags only; a missing file is
// not an error (LoadGatewayConfig tolerates it), an unreadable one is.
func InitGatewayViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	viper.SetEnvPrefix("TUNLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("port", "PORT")
	_ = viper.BindEnv("token", "TUNLY_TOKEN")
	_ = viper.BindEnv("jwt_secret", "TUNLY_JWT_SECRET")
	_ = viper.BindEnv("internal_key", "TUNLY_INTERNAL_KEY")
}

// InitAgentViper initializes Viper for the agent binary.
func InitAgentViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	viper.SetEnvPrefix("TUNLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("token", "TUNLY_TOKEN")
}

// readConfigFileIfPresent reads the configured file, if any, tolerating
// "file not found" when the user never pointed at one.
func readConfigFileIfPresent() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadGatewayConfig reads flags/env/file into a GatewayConfig, applies
// defaults, and validates. Call InitGatewayViper first.
func LoadGatewayConfig() (*GatewayConfig, error) {
	if err := readConfigFileIfPresent(); err != nil {
		return nil, err
	}

	cfg := &GatewayConfig{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadAgentConfig reads flags/env/file into an AgentConfig, applies
// defaults, and validates. Call InitAgentViper first.
func LoadAgentConfig() (*AgentConfig, error) {
	if err := readConfigFileIfPresent(); err != nil {
		return nil, err
	}

	cfg := &AgentConfig{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent config: %w", err)
	}

	cfg.SetDefaults()
	cfg.applyFallbackToken()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// SetDefaults applies the gateway's documented defaults to unset fields.
func (c *GatewayConfig) SetDefaults() {
	if c.Host == "" && c.Bind == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SetDefaults applies the agent's documented defaults to unset fields.
func (c *AgentConfig) SetDefaults() {
	if c.RemoteHost == "" {
		c.RemoteHost = "app.tunly.online"
	}
	if c.Local == "" {
		c.Local = "127.0.0.1:80"
	}
	if !viper.IsSet("use_wss") {
		c.UseWSS = true
	}
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// applyFallbackToken fills Token from TUNLY_TOKEN or a tolerant config.txt
// key=value fallback file in the working directory, matching the original
// tunly-client's config discovery, when no --token-url is configured and no
// token has been set by flag/env/file yet.
func (c *AgentConfig) applyFallbackToken() {
	if c.TokenURL != "" || c.Token != "" {
		return
	}
	if env := os.Getenv("TUNLY_TOKEN"); env != "" {
		c.Token = env
		return
	}
	c.Token = readConfigTxtToken("config.txt")
}

// readConfigTxtToken does tolerant key=value parsing of a config.txt file,
// looking for a "token" key. Returns "" if the file is absent, unreadable,
// or has no token entry.
func readConfigTxtToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		if strings.TrimSpace(key) == "token" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ConfigFileUsed returns the path of the config file Viper loaded, or ""
// if none was used.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
