package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisPresenceHost string `env:"REDIS_PRESENCE_HOST" envDefault:"localhost"`
	RedisPresencePort uint16 `env:"REDIS_PRESENCE_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"presence_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"presence_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"presence_db"`

	// DefaultRoomKey is the room new connections land in when the client
	// does not name one. Room keys must not contain ':' (pub/sub channel
	// delimiter) or '#' (membership token separator).
	DefaultRoomKey string `env:"DEFAULT_ROOM_KEY" envDefault:"lobby" validate:"required,excludesall=:#"`

	// ConnTTL is the presence lease on each connection record; the
	// gateway refreshes it on every ping round-trip.
	ConnTTL        time.Duration `env:"CONN_TTL"        envDefault:"60s" validate:"min=1s"`
	ReapInterval   time.Duration `env:"REAP_INTERVAL"   envDefault:"30s" validate:"min=1s"`
	MirrorInterval time.Duration `env:"MIRROR_INTERVAL" envDefault:"10s" validate:"min=1s"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8086" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config. A failure here is fatal at boot: the process
	// must never serve connections with required resources unresolved.
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
