package config

import (
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength int
}

type PinConfig struct {
	MaxAttempts int64
	LockWindow  time.Duration
}

type Config struct {
	Port            string
	LogDevelopment  bool
	JWTSecret       string
	HistoryMaxLimit int
	Database        DatabaseConfig
	Redis           RedisConfig
	Argon2          Argon2Config
	Pin             PinConfig
}

// Init points viper at the optional .env file and binds the environment
// variables the service reads. Environment always overrides the file.
func Init(configFile string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	viper.AutomaticEnv()

	viper.BindEnv("http.port", "PORT")
	viper.BindEnv("log.development", "LOG_DEVELOPMENT")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("pin.max_attempts", "PIN_MAX_ATTEMPTS")
	viper.BindEnv("pin.lock_window", "PIN_LOCK_WINDOW")
	viper.BindEnv("ledger.history_max_limit", "LEDGER_HISTORY_MAX_LIMIT")

	if configFile == "" {
		return nil
	}
	return viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("http.port", "8080")
	viper.SetDefault("log.development", false)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "org_ledger")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("pin.max_attempts", 5)
	viper.SetDefault("pin.lock_window", 15*time.Minute)
	viper.SetDefault("ledger.history_max_limit", 200)
}

// Load returns the typed configuration with defaults applied
func Load() *Config {
	setDefaults()

	return &Config{
		Port:            viper.GetString("http.port"),
		LogDevelopment:  viper.GetBool("log.development"),
		JWTSecret:       viper.GetString("jwt.secret_key"),
		HistoryMaxLimit: viper.GetInt("ledger.history_max_limit"),
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetString("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			Name:            viper.GetString("database.name"),
			SSLMode:         viper.GetString("database.ssl_mode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Argon2: Argon2Config{
			Time:       viper.GetUint32("argon2.time"),
			Memory:     viper.GetUint32("argon2.memory"),
			Threads:    uint8(viper.GetUint("argon2.threads")),
			KeyLength:  viper.GetUint32("argon2.key_length"),
			SaltLength: viper.GetInt("argon2.salt_length"),
		},
		Pin: PinConfig{
			MaxAttempts: viper.GetInt64("pin.max_attempts"),
			LockWindow:  viper.GetDuration("pin.lock_window"),
		},
	}
}
