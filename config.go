package contacts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig contains service configuration loaded from the environment.
type AppConfig struct {
	Server      Server      `envPrefix:"SERVER_"`
	Auth        Auth        `envPrefix:"AUTH_"`
	Persistence Persistence `envPrefix:"DATABASE_"`
	Storage     Storage     `envPrefix:"MINIO_"`
	Contacts    ContactsCfg `envPrefix:"CONTACTS_"`
}

// Server contains HTTP server parameters.
type Server struct {
	Address string `env:"ADDRESS" envDefault:":8080"`
}

// Auth contains token and guard parameters.
type Auth struct {
	SigningKey  string        `env:"SIGNING_KEY" envDefault:"devsecret"`
	Issuer      string        `env:"ISSUER" envDefault:"contacts"`
	Audience    []string      `env:"AUDIENCE" envDefault:"contacts"`
	ContextKey  string        `env:"CONTEXT_KEY" envDefault:"claims"`
	TokenLookup string        `env:"TOKEN_LOOKUP" envDefault:"header:Authorization,cookie:refresh_token"`
	AuthScheme  string        `env:"SCHEME" envDefault:"Bearer"`
	AccessTTL   time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL  time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	VerifyTTL   time.Duration `env:"VERIFY_TTL" envDefault:"24h"`
	ResetTTL    time.Duration `env:"RESET_TTL" envDefault:"1h"`
}

// Persistence contains database connection parameters.
type Persistence struct {
	Debug                 bool   `env:"DEBUG" envDefault:"false"`
	Driver                string `env:"DRIVER" envDefault:"sqlite"`
	DSN                   string `env:"DSN" envDefault:"file::memory:?cache=shared"`
	PingTimeoutExpression string `env:"PING_TIMEOUT" envDefault:"5s"`
}

// Storage contains object storage parameters for avatars.
type Storage struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"contacts-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"contacts-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"contacts-avatars"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// ContactsCfg contains address book parameters.
type ContactsCfg struct {
	PhoneRegion string `env:"PHONE_REGION" envDefault:"US"`
}

// NewAppConfig loads configuration from environment variables.
func NewAppConfig() (*AppConfig, error) {
	cfg := AppConfig{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

var _ Config = Auth{}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetContextKey() string {
	return a.ContextKey
}

func (a Auth) GetTokenLookup() string {
	return a.TokenLookup
}

func (a Auth) GetAuthScheme() string {
	return a.AuthScheme
}

func (a Auth) GetIssuer() string {
	return a.Issuer
}

func (a Auth) GetAudience() []string {
	return a.Audience
}

func (a Auth) GetTokenPolicy() TokenPolicy {
	policy := DefaultTokenPolicy()
	if a.AccessTTL > 0 {
		policy.AccessTTL = a.AccessTTL
	}
	if a.RefreshTTL > 0 {
		policy.RefreshTTL = a.RefreshTTL
	}
	if a.VerifyTTL > 0 {
		policy.VerifyTTL = a.VerifyTTL
	}
	if a.ResetTTL > 0 {
		policy.ResetTTL = a.ResetTTL
	}
	return policy
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetDriver() string {
	return p.Driver
}

func (p Persistence) GetDSN() string {
	return p.DSN
}

func (p Persistence) GetPingTimeout() time.Duration {
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}
