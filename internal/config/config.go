package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinJWTSecretLength is the shortest signing secret accepted for admin tokens.
const MinJWTSecretLength = 32

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults are applied by env.Parse.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"` // application environment (development/production)
	Port     string `env:"APP_PORT" envDefault:"8080"`       // HTTP port to listen on
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`      // debug|info|warn|error

	DBDriver string `env:"DB_DRIVER" envDefault:"mysql"` // mysql or sqlite
	DBUser   string `env:"DB_USER"`
	DBPass   string `env:"DB_PASS"`
	DBHost   string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort   string `env:"DB_PORT" envDefault:"3306"`
	DBName   string `env:"DB_NAME" envDefault:"salon"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/salon.db"` // sqlite only

	JWTSecret         string        `env:"JWT_SECRET,required"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"` // bcrypt hash of the shared admin secret
	AdminPassword     string        `env:"ADMIN_PASSWORD"`      // plain secret, development only
	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"12"`

	UploadsDir    string `env:"UPLOADS_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	MaxImageBytes int64  `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
	SeedDefaults  bool   `env:"SEED_DEFAULTS" envDefault:"false"`

	RabbitMQURL     string `env:"RABBITMQ_URL"`
	NotifyEmailTo   string `env:"NOTIFY_EMAIL_TO"`
	NotifyEmailFrom string `env:"NOTIFY_EMAIL_FROM" envDefault:"Guest Hair Spa <no-reply@guesthairspa.ma>"`
	ResendAPIKey    string `env:"RESEND_API_KEY"`

	SessionPurgeSchedule string `env:"SESSION_PURGE_SCHEDULE" envDefault:"@hourly"`

	// CIDRs or addresses of reverse proxies allowed to set X-Forwarded-For.
	// Empty means the socket peer is the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// Load parses environment variables and validates the combination of values.
// Callers are expected to have loaded any .env file beforehand.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "mysql":
		if c.DBUser == "" {
			return errors.New("DB_USER is required when DB_DRIVER=mysql")
		}
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes long, got %d", MinJWTSecretLength, len(c.JWTSecret))
	}
	if (c.AdminPasswordHash == "") == (c.AdminPassword == "") {
		return errors.New("exactly one of ADMIN_PASSWORD_HASH or ADMIN_PASSWORD must be set")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be positive")
	}
	if _, err := c.TrustedProxyNets(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyNets parses TRUSTED_PROXIES.  A bare address is taken as a
// single-host network.
func (c Config) TrustedProxyNets() ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", raw)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
