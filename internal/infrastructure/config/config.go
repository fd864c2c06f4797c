package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	Event        EventConfig
	HTTP         HTTPConfig
	Storage      StorageConfig
	Webhook      WebhookConfig
	GreenAPI     GreenAPIConfig
	Notification NotificationConfig
	Sync         SyncConfig
	Telemetry    TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// EventConfig holds outbox processing configuration
type EventConfig struct {
	ProcessorEnabled bool
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	CleanupEnabled   bool
	CleanupRetention time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// StorageConfig holds the S3-compatible payload archive settings
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
}

// WebhookConfig holds inbound webhook handling settings
type WebhookConfig struct {
	// Secrets per provider, keyed by merchant in the database; these are
	// platform-level fallbacks used when a merchant connects without a secret
	WooCommerceSecret string
	ZidSecret         string
	CalendlySecret    string
	// MaxPayloadBytes caps the raw body accepted on webhook routes
	MaxPayloadBytes int64
	// ReplaySweepInterval is how often unfinished ledger rows are retried
	ReplaySweepInterval time.Duration
	// ReplaySweepBatchSize caps rows per replay sweep
	ReplaySweepBatchSize int
}

// GreenAPIConfig holds Green API gateway settings
type GreenAPIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	WebhookToken   string // shared token Green API sends on inbound webhooks
}

// NotificationConfig holds dispatch retry and quota settings
type NotificationConfig struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	QuotaPerMonth     int64 // 0 disables the quota
	DueSweepInterval  time.Duration
	DueSweepBatchSize int
}

// SyncConfig holds order sync scheduler settings
type SyncConfig struct {
	Enabled        bool
	Interval       time.Duration
	Workers        int
	QueueSize      int
	JobTimeout     time.Duration
	ExpirySweep    time.Duration // WhatsApp instance expiry check interval
	ExpiryBatch    int
	LookbackWindow time.Duration // first-run watermark lookback
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
	ProfilerEnabled   bool
	ProfilerServer    string
}

// Load reads configuration from config.toml and the environment.
// Resolution order, strongest first: WASLA_-prefixed environment
// variables (WASLA_DATABASE_PASSWORD overrides database.password),
// then the config file, then built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		// A missing file just means defaults plus environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("WASLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Event: EventConfig{
			ProcessorEnabled: v.GetBool("event.processor_enabled"),
			BatchSize:        v.GetInt("event.batch_size"),
			PollInterval:     v.GetDuration("event.poll_interval"),
			MaxRetries:       v.GetInt("event.max_retries"),
			CleanupEnabled:   v.GetBool("event.cleanup_enabled"),
			CleanupRetention: v.GetDuration("event.cleanup_retention"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
		},
		Webhook: WebhookConfig{
			WooCommerceSecret:    v.GetString("webhook.woocommerce_secret"),
			ZidSecret:            v.GetString("webhook.zid_secret"),
			CalendlySecret:       v.GetString("webhook.calendly_secret"),
			MaxPayloadBytes:      v.GetInt64("webhook.max_payload_bytes"),
			ReplaySweepInterval:  v.GetDuration("webhook.replay_sweep_interval"),
			ReplaySweepBatchSize: v.GetInt("webhook.replay_sweep_batch_size"),
		},
		GreenAPI: GreenAPIConfig{
			BaseURL:        v.GetString("greenapi.base_url"),
			RequestTimeout: v.GetDuration("greenapi.request_timeout"),
			WebhookToken:   v.GetString("greenapi.webhook_token"),
		},
		Notification: NotificationConfig{
			MaxAttempts:       v.GetInt("notification.max_attempts"),
			BackoffBase:       v.GetDuration("notification.backoff_base"),
			BackoffCap:        v.GetDuration("notification.backoff_cap"),
			QuotaPerMonth:     v.GetInt64("notification.quota_per_month"),
			DueSweepInterval:  v.GetDuration("notification.due_sweep_interval"),
			DueSweepBatchSize: v.GetInt("notification.due_sweep_batch_size"),
		},
		Sync: SyncConfig{
			Enabled:        v.GetBool("sync.enabled"),
			Interval:       v.GetDuration("sync.interval"),
			Workers:        v.GetInt("sync.workers"),
			QueueSize:      v.GetInt("sync.queue_size"),
			JobTimeout:     v.GetDuration("sync.job_timeout"),
			ExpirySweep:    v.GetDuration("sync.expiry_sweep"),
			ExpiryBatch:    v.GetInt("sync.expiry_batch"),
			LookbackWindow: v.GetDuration("sync.lookback_window"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			ProfilerServer:    v.GetString("telemetry.profiler_server"),
		},
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills every zero-valued field with its built-in default.
func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Database.applyDefaults()
	c.Redis.applyDefaults()
	c.Log.applyDefaults()
	c.Event.applyDefaults()
	c.HTTP.applyDefaults()
	c.Storage.applyDefaults()
	c.Webhook.applyDefaults()
	c.GreenAPI.applyDefaults()
	c.Notification.applyDefaults()
	c.Sync.applyDefaults()
	c.Telemetry.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	setStr(&a.Name, "wasla-backend")
	setStr(&a.Env, "development")
	setStr(&a.Port, "8080")
}

func (d *DatabaseConfig) applyDefaults() {
	setStr(&d.Host, "localhost")
	setInt(&d.Port, 5432)
	setStr(&d.User, "postgres")
	setStr(&d.DBName, "wasla")
	setStr(&d.SSLMode, "disable")
	setInt(&d.MaxOpenConns, 25)
	setInt(&d.MaxIdleConns, 5)
	setInt(&d.ConnMaxLifetime, 60)
	setInt(&d.ConnMaxIdleTime, 30)
}

func (r *RedisConfig) applyDefaults() {
	setStr(&r.Host, "localhost")
	setInt(&r.Port, 6379)
}

func (l *LogConfig) applyDefaults() {
	setStr(&l.Level, "info")
	setStr(&l.Format, "console")
	setStr(&l.Output, "stdout")
}

func (e *EventConfig) applyDefaults() {
	setInt(&e.BatchSize, 100)
	setDur(&e.PollInterval, 5*time.Second)
	setInt(&e.MaxRetries, 5)
	setDur(&e.CleanupRetention, 168*time.Hour)
}

func (h *HTTPConfig) applyDefaults() {
	setDur(&h.ReadTimeout, 15*time.Second)
	setDur(&h.WriteTimeout, 15*time.Second)
	setDur(&h.IdleTimeout, 60*time.Second)
	setInt(&h.MaxHeaderBytes, 1<<20)
	setInt64(&h.MaxBodySize, 10<<20)
	setInt(&h.RateLimitRequests, 100)
	setDur(&h.RateLimitWindow, time.Minute)
	// CORS origins deliberately have no "*" fallback; an empty list means
	// no cross-origin requests until explicitly configured.
	if len(h.CORSAllowMethods) == 0 {
		h.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(h.CORSAllowHeaders) == 0 {
		h.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Merchant-ID"}
	}
}

func (s *StorageConfig) applyDefaults() {
	setStr(&s.Region, "me-south-1")
	setStr(&s.Bucket, "wasla-webhook-payloads")
}

func (w *WebhookConfig) applyDefaults() {
	setInt64(&w.MaxPayloadBytes, 1<<20)
	setDur(&w.ReplaySweepInterval, time.Minute)
	setInt(&w.ReplaySweepBatchSize, 50)
}

func (g *GreenAPIConfig) applyDefaults() {
	setStr(&g.BaseURL, "https://api.green-api.com")
	setDur(&g.RequestTimeout, 15*time.Second)
}

func (n *NotificationConfig) applyDefaults() {
	setInt(&n.MaxAttempts, 3)
	setDur(&n.BackoffBase, 30*time.Second)
	setDur(&n.BackoffCap, 10*time.Minute)
	setDur(&n.DueSweepInterval, 30*time.Second)
	setInt(&n.DueSweepBatchSize, 50)
}

func (s *SyncConfig) applyDefaults() {
	setDur(&s.Interval, 15*time.Minute)
	setInt(&s.Workers, 4)
	setInt(&s.QueueSize, 64)
	setDur(&s.JobTimeout, 10*time.Minute)
	setDur(&s.ExpirySweep, time.Hour)
	setInt(&s.ExpiryBatch, 100)
	setDur(&s.LookbackWindow, 30*24*time.Hour)
}

func (t *TelemetryConfig) applyDefaults() {
	setStr(&t.CollectorEndpoint, "localhost:4317")
	if t.SamplingRatio == 0 {
		t.SamplingRatio = 1.0
	}
	setStr(&t.ServiceName, "wasla-backend")
	setDur(&t.DBSlowQueryThresh, 200*time.Millisecond)
	setStr(&t.ProfilerServer, "http://localhost:4040")
	// DBLogFullSQL stays false unless explicitly enabled; full SQL in
	// traces can leak customer phone numbers.
}

func setStr(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func setInt(field *int, def int) {
	if *field == 0 {
		*field = def
	}
}

func setInt64(field *int64, def int64) {
	if *field == 0 {
		*field = def
	}
}

func setDur(field *time.Duration, def time.Duration) {
	if *field == 0 {
		*field = def
	}
}

// validate rejects configurations that would misbehave at runtime.
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Storage.Enabled && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
	}

	if c.Notification.MaxAttempts < 1 {
		return fmt.Errorf("notification.max_attempts must be at least 1")
	}
	if c.Notification.BackoffBase > c.Notification.BackoffCap {
		return fmt.Errorf("notification.backoff_base (%s) cannot exceed notification.backoff_cap (%s)",
			c.Notification.BackoffBase, c.Notification.BackoffCap)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

// validateProduction enforces the hardening a production deployment needs.
func (c *Config) validateProduction() error {
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database.sslmode cannot be 'disable' in production")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}
	if c.GreenAPI.WebhookToken == "" {
		return fmt.Errorf("greenapi.webhook_token is required in production")
	}
	if c.Telemetry.DBLogFullSQL {
		return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
