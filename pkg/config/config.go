package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Mail drivers supported by pkg/mail.
const (
	MailDriverLog      = "log"
	MailDriverSMTP     = "smtp"
	MailDriverSendGrid = "sendgrid"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	SPML     SPMLConfig
	Mail     MailConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// SPMLConfig holds the fixed mapping knobs for the provisioning feed.
type SPMLConfig struct {
	ServiceLogin      string
	EmailDomain       string
	MobileCountryCode string
	TemplatesPath     string
	AdminAlertAddress string
	HelpFrom          string
	HelpName          string
	LogRetention      time.Duration
	PruneSchedule     string
	RateLimitRPS      int
	RateLimitBurst    int
	AlertWorkers      int
}

// MailConfig selects the outbound mail transport.
type MailConfig struct {
	Driver         string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SendGridAPIKey string
}

// CacheConfig tunes redis-backed lookups.
type CacheConfig struct {
	OrgTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 365*24*time.Hour),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SPML = SPMLConfig{
		ServiceLogin:      strings.ToLower(v.GetString("SPML_SERVICE_LOGIN")),
		EmailDomain:       strings.TrimPrefix(v.GetString("SPML_EMAIL_DOMAIN"), "@"),
		MobileCountryCode: v.GetString("SPML_MOBILE_COUNTRY_CODE"),
		TemplatesPath:     v.GetString("SPML_TEMPLATES_PATH"),
		AdminAlertAddress: v.GetString("SPML_ADMIN_ALERT_ADDRESS"),
		HelpFrom:          v.GetString("SPML_HELP_FROM"),
		HelpName:          v.GetString("SPML_HELP_NAME"),
		LogRetention:      parseDuration(v.GetString("SPML_LOG_RETENTION"), 90*24*time.Hour),
		PruneSchedule:     v.GetString("SPML_PRUNE_SCHEDULE"),
		RateLimitRPS:      v.GetInt("SPML_RATE_LIMIT_RPS"),
		RateLimitBurst:    v.GetInt("SPML_RATE_LIMIT_BURST"),
		AlertWorkers:      v.GetInt("ALERT_WORKERS"),
	}

	cfg.Mail = MailConfig{
		Driver:         strings.ToLower(v.GetString("MAIL_DRIVER")),
		SMTPHost:       v.GetString("SMTP_HOST"),
		SMTPPort:       v.GetInt("SMTP_PORT"),
		SMTPUser:       v.GetString("SMTP_USER"),
		SMTPPassword:   v.GetString("SMTP_PASSWORD"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
	}

	cfg.Cache = CacheConfig{
		OrgTTL: parseDuration(v.GetString("ORG_CACHE_TTL"), 12*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "spml")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "8760h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SPML_SERVICE_LOGIN", "spml")
	v.SetDefault("SPML_EMAIL_DOMAIN", "uct.ac.za")
	v.SetDefault("SPML_MOBILE_COUNTRY_CODE", "27")
	v.SetDefault("SPML_TEMPLATES_PATH", "./templates/email.yaml")
	v.SetDefault("SPML_ADMIN_ALERT_ADDRESS", "help-team@vula.uct.ac.za")
	v.SetDefault("SPML_HELP_FROM", "help@vula.uct.ac.za")
	v.SetDefault("SPML_HELP_NAME", "Vula Help")
	v.SetDefault("SPML_LOG_RETENTION", "2160h")
	v.SetDefault("SPML_PRUNE_SCHEDULE", "0 30 2 * * *")
	v.SetDefault("SPML_RATE_LIMIT_RPS", 50)
	v.SetDefault("SPML_RATE_LIMIT_BURST", 100)
	v.SetDefault("ALERT_WORKERS", 1)

	v.SetDefault("MAIL_DRIVER", MailDriverLog)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 25)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SENDGRID_API_KEY", "")

	v.SetDefault("ORG_CACHE_TTL", "12h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// viper reports a missing explicit config file as a plain fs error.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
