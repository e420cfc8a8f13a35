package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadEnv reads .env into the process environment. It reports false when
// there is no .env and the system environment is used as-is.
func LoadEnv() bool {
	return godotenv.Load() == nil
}

func GetEnv(key string, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

type Config struct {
	Host     string `envconfig:"APP_HOST" default:"0.0.0.0"`
	Port     string `envconfig:"APP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// JWT
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Store
	StoreDriver string `envconfig:"STORE_DRIVER" default:"mysql"`
	MySQLDSN    string `envconfig:"MYSQL_DSN"`
	// Roster
	RosterDriver           string `envconfig:"ROSTER_DRIVER" default:"mongo"`
	MongoURI               string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB                string `envconfig:"MONGO_DB" default:"directory"`
	MongoUser              string `envconfig:"MONGO_USER"`
	MongoPassword          string `envconfig:"MONGO_PASSWORD"`
	MongoAdvisorCollection string `envconfig:"MONGO_ADVISOR_COLLECTION" default:"users"`
	StaticAdvisors         string `envconfig:"STATIC_ADVISORS"`
	// Slot lock
	LockDriver    string        `envconfig:"LOCK_DRIVER" default:"local"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisLockTTL  time.Duration `envconfig:"REDIS_LOCK_TTL" default:"10s"`
	// Notifications
	RabbitURL      string `envconfig:"RABBIT_URL"`
	NotifyExchange string `envconfig:"NOTIFY_EXCHANGE" default:"booking.events"`
	NotifyBuffer   int    `envconfig:"NOTIFY_BUFFER" default:"256"`
	// Business day
	Timezone        string        `envconfig:"APP_TIMEZONE" default:"Asia/Jakarta"`
	OpeningTime     string        `envconfig:"OPENING_TIME" default:"08:00"`
	ClosingTime     string        `envconfig:"CLOSING_TIME" default:"17:00"`
	SlotWindows     []string      `envconfig:"SLOT_WINDOWS" default:"08:00-09:00,09:00-10:00,10:00-11:00,11:00-12:00,13:00-14:00,14:00-15:00,15:00-16:00,16:00-17:00"`
	ServiceDuration time.Duration `envconfig:"SERVICE_DURATION" default:"60m"`
	ModifyCutoff    time.Duration `envconfig:"MODIFY_CUTOFF" default:"2h"`
	// Metrics
	MetricsUser string `envconfig:"METRICS_USER"`
	MetricsPass string `envconfig:"METRICS_PASS"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	switch c.StoreDriver {
	case "mysql":
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when STORE_DRIVER=mysql")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.RosterDriver {
	case "mongo", "static":
	default:
		return fmt.Errorf("unknown ROSTER_DRIVER %q", c.RosterDriver)
	}

	switch c.LockDriver {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.LockDriver)
	}
	return nil
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	return loc, nil
}
