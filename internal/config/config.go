// ABOUTME: Configuration loading and parsing for ledger-gateway
// ABOUTME: YAML file with env expansion plus env-first Fabric network settings

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ledger-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Fabric   FabricConfig   `yaml:"fabric"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds the SQLite user database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenTTLRaw string `yaml:"token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FabricConfig holds the Fabric network topology and credential paths.
// Every field is resolved exactly once at load time: environment variable
// first, then the YAML value, then a literal default. Derived filesystem
// paths are computed eagerly so a misconfiguration surfaces at session open
// rather than mid-transaction.
type FabricConfig struct {
	ChannelName   string `yaml:"channel_name"`
	ChaincodeName string `yaml:"chaincode_name"`
	MSPID         string `yaml:"msp_id"`
	CryptoPath    string `yaml:"crypto_path"`
	TLSCertPath   string `yaml:"tls_cert_path"`
	PeerEndpoint  string `yaml:"peer_endpoint"`
	PeerHostAlias string `yaml:"peer_host_alias"`

	// Fixed-identity variant: a single cert file plus a key directory
	// holding exactly one private key file.
	KeyDirectoryPath string `yaml:"key_directory_path"`
	CertPath         string `yaml:"cert_path"`

	// Per-user identity variant: wallet directory and CA enrollment surface.
	WalletPath    string `yaml:"wallet_path"`
	CAURL         string `yaml:"ca_url"`
	CAName        string `yaml:"ca_name"`
	CAAdminID     string `yaml:"ca_admin_id"`
	CAAdminSecret string `yaml:"ca_admin_secret"`
	Affiliation   string `yaml:"affiliation"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded before parsing,
// and the Fabric section is then resolved env-first (see resolveFabric).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	resolveFabric(&cfg.Fabric)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration resolved purely from the environment and
// literal defaults, for deployments that run without a config file.
func Default() (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	resolveFabric(&cfg.Fabric)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills in server-level defaults for fields the YAML left empty
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "0.0.0.0:3000"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/ledger-gateway.db"
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.Auth.TokenTTLRaw == "" {
		cfg.Auth.TokenTTLRaw = "1h"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// resolveFabric resolves every Fabric field once: environment first, then the
// YAML value already carried in the struct, then a literal default. Derived
// paths are computed from the resolved crypto path, eagerly.
func resolveFabric(fc *FabricConfig) {
	fc.ChannelName = envOrDefault("CHANNEL_NAME", fc.ChannelName, "mychannel")
	fc.ChaincodeName = envOrDefault("CHAINCODE_NAME", fc.ChaincodeName, "basic")
	fc.MSPID = envOrDefault("MSP_ID", fc.MSPID, "Org1MSP")
	fc.CryptoPath = envOrDefault("CRYPTO_PATH", fc.CryptoPath,
		filepath.Join("..", "fabric-samples", "test-network", "organizations", "peerOrganizations", "org1.example.com"))
	fc.TLSCertPath = envOrDefault("TLS_CERT_PATH", fc.TLSCertPath,
		filepath.Join(fc.CryptoPath, "peers", "peer0.org1.example.com", "tls", "ca.crt"))
	fc.PeerEndpoint = envOrDefault("PEER_ENDPOINT", fc.PeerEndpoint, "localhost:7051")
	fc.PeerHostAlias = envOrDefault("PEER_HOST_ALIAS", fc.PeerHostAlias, "peer0.org1.example.com")
	fc.KeyDirectoryPath = envOrDefault("KEY_DIRECTORY_PATH", fc.KeyDirectoryPath,
		filepath.Join(fc.CryptoPath, "users", "User1@org1.example.com", "msp", "keystore"))
	fc.CertPath = envOrDefault("CERT_PATH", fc.CertPath,
		filepath.Join(fc.CryptoPath, "users", "User1@org1.example.com", "msp", "signcerts", "cert.pem"))
	fc.WalletPath = envOrDefault("WALLET_PATH", fc.WalletPath, "./data/wallet")
	fc.CAURL = envOrDefault("CA_URL", fc.CAURL, "https://localhost:7054")
	fc.CAName = envOrDefault("CA_NAME", fc.CAName, "ca-org1")
	fc.CAAdminID = envOrDefault("CA_ADMIN_ID", fc.CAAdminID, "admin")
	fc.CAAdminSecret = envOrDefault("CA_ADMIN_SECRET", fc.CAAdminSecret, "adminpw")
	fc.Affiliation = envOrDefault("AFFILIATION", fc.Affiliation, "org1.department1")
}

// envOrDefault returns the environment value for key if set, otherwise the
// configured value, otherwise the literal fallback. Absence is never an error.
func envOrDefault(key, configured, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. If the environment variable is not set, it is replaced with
// an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Fabric.PeerEndpoint == "" {
		return fmt.Errorf("fabric.peer_endpoint is required")
	}
	if c.Fabric.ChannelName == "" {
		return fmt.Errorf("fabric.channel_name is required")
	}
	if c.Fabric.ChaincodeName == "" {
		return fmt.Errorf("fabric.chaincode_name is required")
	}
	if c.Fabric.MSPID == "" {
		return fmt.Errorf("fabric.msp_id is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	return nil
}
