package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/omsfleet/binance-gateway/services/binance"
)

// Config is the full gateway configuration, loaded from gateway.yaml with
// environment overrides (GATEWAY_SERVER_LISTEN_ADDR and friends).
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Vault  VaultConfig
	NATS   NATSConfig
	FanOut FanOutConfig
	Hosts  binance.Hosts
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds JWT login settings. Username/Password gate the login
// endpoint; JWTSecret signs issued tokens.
type AuthConfig struct {
	Username  string
	Password  string
	JWTSecret string
	TokenTTL  time.Duration
}

// VaultConfig holds credential store settings. Empty address disables
// Vault and falls back to the in-memory store.
type VaultConfig struct {
	Address string
	Token   string
}

// NATSConfig holds event bus settings. Empty URL disables publishing.
type NATSConfig struct {
	URL string
}

// FanOutConfig bounds the batch dispatcher.
type FanOutConfig struct {
	Workers           int
	BatchTimeout      time.Duration
	RequestsPerSecond int
}

// Load reads configuration from the given path (or the working directory
// when empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("gateway")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/binance-gateway")

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env vars are a valid
		// deployment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			ListenAddr:      v.GetString("server.listen_addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Auth: AuthConfig{
			Username:  v.GetString("auth.username"),
			Password:  v.GetString("auth.password"),
			JWTSecret: v.GetString("auth.jwt_secret"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Vault: VaultConfig{
			Address: v.GetString("vault.address"),
			Token:   v.GetString("vault.token"),
		},
		NATS: NATSConfig{
			URL: v.GetString("nats.url"),
		},
		FanOut: FanOutConfig{
			Workers:           v.GetInt("fanout.workers"),
			BatchTimeout:      v.GetDuration("fanout.batch_timeout"),
			RequestsPerSecond: v.GetInt("fanout.requests_per_second"),
		},
		Hosts: binance.Hosts{
			Spot:      v.GetString("binance.spot_host"),
			SAPI:      v.GetString("binance.sapi_host"),
			UMFutures: v.GetString("binance.um_futures_host"),
			CMFutures: v.GetString("binance.cm_futures_host"),
			PAPI:      v.GetString("binance.papi_host"),
			Stream:    v.GetString("binance.stream_host"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("fanout.workers", 10)
	v.SetDefault("fanout.batch_timeout", 30*time.Second)
	v.SetDefault("fanout.requests_per_second", 15)

	hosts := binance.DefaultHosts()
	v.SetDefault("binance.spot_host", hosts.Spot)
	v.SetDefault("binance.sapi_host", hosts.SAPI)
	v.SetDefault("binance.um_futures_host", hosts.UMFutures)
	v.SetDefault("binance.cm_futures_host", hosts.CMFutures)
	v.SetDefault("binance.papi_host", hosts.PAPI)
	v.SetDefault("binance.stream_host", hosts.Stream)
}
