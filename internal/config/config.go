// Package config provides configuration types for the Tunly gateway and
// agent binaries.
package config

import "strconv"

// GatewayConfig is the configuration for the tunly-server binary. Fields
// are populated from CLI flags, environment variables, and an optional
// YAML file, in that precedence order (flags > env > file > defaults).
type GatewayConfig struct {
	// Host is the interface to listen on. Combined with Port unless Bind
	// is set. Defaults to "0.0.0.0".
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the TCP port to listen on (env PORT). Defaults to 8080.
	Port int `yaml:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`

	// Bind overrides Host/Port with a single "addr:port" listen address.
	Bind string `yaml:"bind" mapstructure:"bind" validate:"omitempty,hostname_port"`

	// Token, when set, activates fixed-token mode: every upgrade must
	// present this exact bearer token (env TUNLY_TOKEN). Empty means
	// ephemeral (per-session, single-use, JWT-signed) credential mode.
	Token string `yaml:"token" mapstructure:"token"`

	// JWTSecret signs ephemeral credentials (env TUNLY_JWT_SECRET). When
	// empty in ephemeral mode, a 32-byte random secret is generated at
	// startup and credentials do not survive a restart.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`

	// AllowTokenQuery permits the bearer token as a "?token=" query
	// parameter on the websocket upgrade, for clients that cannot set
	// headers. Defaults to false.
	AllowTokenQuery bool `yaml:"allow_token_query" mapstructure:"allow_token_query"`

	// InternalKey, when set, gates /token behind a matching
	// X-Internal-Key header (env TUNLY_INTERNAL_KEY). Empty means /token
	// is open to any caller (subject to the credential rate limit).
	InternalKey string `yaml:"internal_key" mapstructure:"internal_key"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file" mapstructure:"tls_key_file"`

	// LogLevel sets the minimum log level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// Addr resolves the effective listen address: Bind if set, else Host:Port.
func (c *GatewayConfig) Addr() string {
	if c.Bind != "" {
		return c.Bind
	}
	return addrJoin(c.Host, c.Port)
}

// AgentConfig is the configuration for the tunly-agent binary.
type AgentConfig struct {
	// RemoteHost is the gateway host (and optional port) to dial, e.g.
	// "app.tunly.online" or "gateway.internal:9443".
	RemoteHost string `yaml:"remote_host" mapstructure:"remote_host" validate:"required"`

	// Local is the local service this agent exposes, "host:port".
	Local string `yaml:"local" mapstructure:"local" validate:"required,hostname_port"`

	// UseWSS selects wss:// (true) or ws:// (false) for the control
	// channel. TokenURL is fetched as given, whatever this is set to.
	UseWSS bool `yaml:"use_wss" mapstructure:"use_wss"`

	// Path is the websocket upgrade path on the gateway, e.g. "/ws".
	Path string `yaml:"path" mapstructure:"path" validate:"required"`

	// TokenURL, when set, is fetched to obtain a bearer token before
	// connecting. When empty, Token (a pre-provisioned fixed token) is
	// used instead.
	TokenURL string `yaml:"token_url" mapstructure:"token_url" validate:"omitempty,url"`

	// Token is a pre-provisioned fixed bearer token, used when TokenURL
	// is empty. Populated from TUNLY_TOKEN or a config.txt fallback file
	// when not given explicitly.
	Token string `yaml:"token" mapstructure:"token"`

	// LogLevel sets the minimum log level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

func addrJoin(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + strconv.Itoa(port)
}
