package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultMaxUploadBytes is the per-file upload ceiling (100 MiB).
const DefaultMaxUploadBytes int64 = 100 << 20

type Config struct {
	Env            string
	HttpPort       string
	APIKey         string
	PublicURL      string   // base of the gateway download URLs handed out for files
	MaxUploadBytes int64    // per-file ceiling for upload/update
	FileURLs       bool     // derive url/directUrl for listed files
	URLExpirySec   int      // lifetime of directUrl entries
	CORSOrigins    []string
	S3             S3Config
	DBDriver       string // none|sqlite|postgres
	DBPath         string // used when DBDriver=sqlite
	DBDsn          string // used when DBDriver=postgres (e.g., DATABASE_URL)
	Tracing        TracingConfig
}

type S3Config struct {
	Driver    string // minio|aws|memory
	Endpoint  string // host, host:port or URL
	Port      int    // appended to Endpoint unless 80/443 or already present
	UseSSL    bool
	AccessKey string
	SecretKey string
	Region    string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string // OTLP/HTTP collector, host:port or URL
	SampleRatio float64
}

// env names per key; the first one set wins.
var envs = map[string][]string{
	"env":                  {"APP_ENV"},
	"http_port":            {"HTTP_PORT", "PORT"},
	"api_key":              {"API_KEY"},
	"public_url":           {"PUBLIC_URL", "PRODUCTION_URL"},
	"max_upload_bytes":     {"MAX_UPLOAD_BYTES"},
	"file_urls":            {"FILE_URLS"},
	"url_expiry":           {"URL_EXPIRY"},
	"cors_origins":         {"CORS_ORIGINS"},
	"s3.driver":            {"S3_DRIVER"},
	"s3.endpoint":          {"S3_ENDPOINT"},
	"s3.port":              {"S3_PORT"},
	"s3.use_ssl":           {"S3_USE_SSL"},
	"s3.access_key":        {"S3_ACCESS_KEY"},
	"s3.secret_key":        {"S3_SECRET_KEY"},
	"s3.region":            {"S3_REGION"},
	"db.driver":            {"DB_DRIVER"},
	"db.path":              {"DB_PATH"},
	"db.dsn":               {"DATABASE_URL", "DB_DSN"},
	"tracing.enabled":      {"TRACING_ENABLED"},
	"tracing.endpoint":     {"OTLP_ENDPOINT"},
	"tracing.sample_ratio": {"TRACING_SAMPLE_RATIO"},
}

func defaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("http_port", "3000")
	v.SetDefault("public_url", "http://localhost:3000")
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("file_urls", true)
	v.SetDefault("url_expiry", 3600)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("s3.driver", "minio")
	v.SetDefault("s3.endpoint", "localhost")
	v.SetDefault("s3.port", 9000)
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.access_key", "minioadmin")
	v.SetDefault("s3.secret_key", "minioadmin")
	v.SetDefault("s3.region", "")
	v.SetDefault("db.driver", "none")
	v.SetDefault("db.path", "data/storagekit.db")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load reads configuration from defaults, an optional config file and the
// environment (highest precedence). An empty path falls back to STORAGEKIT_CONFIG.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)
	for key, names := range envs {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, err
		}
	}
	if path == "" {
		_ = v.BindEnv("config_file", "STORAGEKIT_CONFIG")
		path = v.GetString("config_file")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Env:            v.GetString("env"),
		HttpPort:       v.GetString("http_port"),
		APIKey:         v.GetString("api_key"),
		PublicURL:      strings.TrimRight(v.GetString("public_url"), "/"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		FileURLs:       v.GetBool("file_urls"),
		URLExpirySec:   v.GetInt("url_expiry"),
		CORSOrigins:    splitList(v.GetStringSlice("cors_origins")),
		S3: S3Config{
			Driver:    strings.ToLower(strings.TrimSpace(v.GetString("s3.driver"))),
			Endpoint:  v.GetString("s3.endpoint"),
			Port:      v.GetInt("s3.port"),
			UseSSL:    v.GetBool("s3.use_ssl"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
			Region:    v.GetString("s3.region"),
		},
		DBDriver: strings.ToLower(strings.TrimSpace(v.GetString("db.driver"))),
		DBPath:   v.GetString("db.path"),
		DBDsn:    v.GetString("db.dsn"),
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			Endpoint:    v.GetString("tracing.endpoint"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem that would prevent serving.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("API_KEY is required")
	}
	switch c.S3.Driver {
	case "minio", "aws", "memory":
	default:
		return fmt.Errorf("unknown S3_DRIVER %q (want minio, aws or memory)", c.S3.Driver)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.URLExpirySec <= 0 {
		return errors.New("URL_EXPIRY must be positive")
	}
	switch c.DBDriver {
	case "", "none", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// AuditEnabled reports whether a database driver was configured.
func (c *Config) AuditEnabled() bool {
	return c.DBDriver != "" && c.DBDriver != "none"
}

// splitList accepts both list values from a file and a comma-separated env var.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
