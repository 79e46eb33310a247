package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Email     EmailConfig     `yaml:"email"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Legacy    LegacyConfig    `yaml:"legacy"`
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

type MessagingConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Backend             string        `yaml:"backend"` // "kafka" or "mqtt"
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	EventsTopic         string        `yaml:"events_topic"`
	AlertsTopic         string        `yaml:"alerts_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	Source              string        `yaml:"source"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromAddress  string `yaml:"from_address"`
	FromName     string `yaml:"from_name"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"` // "redis" or "memory"
	TTL     time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	LocalDir        string `yaml:"local_dir"`
}

type LegacyConfig struct {
	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type EngineConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "ticketops.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "ticketops",
				User:     "ticketops",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			SessionSecret: "change-me-in-production",
		},
		Messaging: MessagingConfig{
			Enabled: false,
			Backend: "kafka",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "ticketops",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "ticketops",
			},
			EventsTopic:         "ticketops.events",
			AlertsTopic:         "ticketops.alerts",
			OutboxDrainInterval: 5 * time.Second,
			Source:              "ticketops",
		},
		Email: EmailConfig{
			SMTPPort: 587,
			FromName: "TicketOps",
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     30 * time.Second,
		},
		Storage: StorageConfig{
			Region:   "us-east-1",
			Prefix:   "backups",
			LocalDir: "backups",
		},
		Legacy: LegacyConfig{
			MongoURI: "mongodb://localhost:27017",
			Database: "ticketops",
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			SweepInterval: 5 * time.Minute,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env files
// and TICKETOPS_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	loadDotEnv()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads .env then lets .env.local override it. Variables already
// present in the process environment win over .env.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	if _, err := os.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

func (c *Config) applyEnv() {
	setString(&c.Database.Driver, "TICKETOPS_DB_DRIVER")
	setString(&c.Database.SQLite.Path, "TICKETOPS_SQLITE_PATH")
	setString(&c.Database.Postgres.Host, "TICKETOPS_PG_HOST")
	setInt(&c.Database.Postgres.Port, "TICKETOPS_PG_PORT")
	setString(&c.Database.Postgres.Database, "TICKETOPS_PG_DATABASE")
	setString(&c.Database.Postgres.User, "TICKETOPS_PG_USER")
	setString(&c.Database.Postgres.Password, "TICKETOPS_PG_PASSWORD")
	setString(&c.Redis.Address, "TICKETOPS_REDIS_ADDR")
	setString(&c.Redis.Password, "TICKETOPS_REDIS_PASSWORD")
	setInt(&c.Web.Port, "TICKETOPS_PORT")
	setString(&c.Web.SessionSecret, "TICKETOPS_SESSION_SECRET")
	setString(&c.Email.SMTPHost, "TICKETOPS_SMTP_HOST")
	setInt(&c.Email.SMTPPort, "TICKETOPS_SMTP_PORT")
	setString(&c.Email.SMTPUser, "TICKETOPS_SMTP_USER")
	setString(&c.Email.SMTPPassword, "TICKETOPS_SMTP_PASSWORD")
	setString(&c.Storage.Bucket, "TICKETOPS_S3_BUCKET")
	setString(&c.Storage.Endpoint, "TICKETOPS_S3_ENDPOINT")
	setString(&c.Storage.AccessKeyID, "TICKETOPS_S3_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "TICKETOPS_S3_SECRET_ACCESS_KEY")
	setString(&c.Legacy.MongoURI, "TICKETOPS_MONGO_URI")
	setString(&c.Log.Level, "TICKETOPS_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Messaging.Backend {
	case "kafka", "mqtt":
	default:
		return fmt.Errorf("unsupported messaging backend: %s", c.Messaging.Backend)
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	if c.Web.Port <= 0 {
		return fmt.Errorf("web port must be positive, got %d", c.Web.Port)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive when cache is enabled")
	}
	return nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
