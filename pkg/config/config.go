// Package config loads runtime configuration for taskschedulerd and
// taskctl. Replaces the teacher's hand-rolled configs/config.go
// (manual os.LookupEnv parsing) with github.com/spf13/viper, sourced
// from the apimgr-search example's env-and-flag-bound viper usage —
// the teacher itself never imported viper, but a config loader is
// exactly the kind of ambient concern this corpus has a library for.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	RedisAddr string

	APIPort int

	JWTSecret  string
	JWTIssuer  string
	AuthEnabled bool

	S3Bucket      string
	S3Endpoint    string
	S3Region      string
	ArchiveLocalDir string

	RecoveryGraceSeconds time.Duration
	MaxPerDay            int
}

// Load reads configuration from environment variables (and, if present,
// a "config" file on the search path), applying the same defaults the
// teacher's configs/config.go hard-coded.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "taskscheduler")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("api.port", 8080)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "taskscheduler")
	v.SetDefault("auth.enabled", false)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("archive.local_dir", "./data/archive")

	v.SetDefault("recovery.grace_seconds", 30)
	v.SetDefault("scheduler.max_per_day", 20)

	bindEnv(v, "db.host", "DB_HOST")
	bindEnv(v, "db.port", "DB_PORT")
	bindEnv(v, "db.user", "DB_USER")
	bindEnv(v, "db.password", "DB_PASSWORD")
	bindEnv(v, "db.name", "DB_NAME")
	bindEnv(v, "redis.addr", "REDIS_ADDR")
	bindEnv(v, "api.port", "API_PORT")
	bindEnv(v, "jwt.secret", "JWT_SECRET")
	bindEnv(v, "jwt.issuer", "JWT_ISSUER")
	bindEnv(v, "auth.enabled", "AUTH_ENABLED")
	bindEnv(v, "s3.bucket", "S3_BUCKET")
	bindEnv(v, "s3.endpoint", "S3_ENDPOINT")
	bindEnv(v, "s3.region", "S3_REGION")
	bindEnv(v, "archive.local_dir", "ARCHIVE_LOCAL_DIR")
	bindEnv(v, "recovery.grace_seconds", "RECOVERY_GRACE_SECONDS")
	bindEnv(v, "scheduler.max_per_day", "MAX_PER_DAY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{
		DBHost:     v.GetString("db.host"),
		DBPort:     v.GetInt("db.port"),
		DBUser:     v.GetString("db.user"),
		DBPassword: v.GetString("db.password"),
		DBName:     v.GetString("db.name"),

		RedisAddr: v.GetString("redis.addr"),

		APIPort: v.GetInt("api.port"),

		JWTSecret:   v.GetString("jwt.secret"),
		JWTIssuer:   v.GetString("jwt.issuer"),
		AuthEnabled: v.GetBool("auth.enabled"),

		S3Bucket:        v.GetString("s3.bucket"),
		S3Endpoint:      v.GetString("s3.endpoint"),
		S3Region:        v.GetString("s3.region"),
		ArchiveLocalDir: v.GetString("archive.local_dir"),

		RecoveryGraceSeconds: time.Duration(v.GetInt("recovery.grace_seconds")) * time.Second,
		MaxPerDay:            v.GetInt("scheduler.max_per_day"),
	}, nil
}

func bindEnv(v *viper.Viper, key, env string) {
	_ = v.BindEnv(key, env)
}

// DBConnString builds a libpq-style connection string from the
// resolved config.
func (c *Config) DBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
