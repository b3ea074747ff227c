package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port        string
	CORSOrigins string
	ProxyHeader string
	AppEnv      string

	// Storage
	VolumePath   string
	DatabaseFile string

	// JWT
	JWTSecret string
	JWTExpiry time.Duration

	// Applicant lifecycle
	RetentionWindow    time.Duration
	RetentionInterval  time.Duration
	SystemLogRetention time.Duration
	ApplyThrottle      time.Duration
	MinApplicantAge    int

	// Upload limits
	UploadMaxBytes  int64
	BackupMaxBytes  int64
	RestoreMaxBytes int64

	// Seeded admin account
	AdminUsername         string
	AdminEmail            string
	AdminPassword         string
	AdminSecurityQuestion string
	AdminSecurityAnswer   string

	// Observability
	LogLevel  string
	LogFile   string
	SentryDSN string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		ProxyHeader: getEnv("PROXY_HEADER", ""),
		AppEnv:      getEnv("APP_ENV", "development"),

		VolumePath:   getEnv("VOLUME_PATH", defaultVolumePath()),
		DatabaseFile: getEnv("DB_FILE", "aloha_database.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: parseDuration(getEnv("JWT_EXPIRY", "8h"), 8*time.Hour),

		RetentionWindow:    parseDuration(getEnv("RETENTION_WINDOW", "72h"), 72*time.Hour),
		RetentionInterval:  parseDuration(getEnv("RETENTION_INTERVAL", "3h"), 3*time.Hour),
		SystemLogRetention: parseDuration(getEnv("SYSTEM_LOG_RETENTION", "720h"), 30*24*time.Hour),
		ApplyThrottle:      parseDuration(getEnv("APPLY_THROTTLE", "24h"), 24*time.Hour),
		MinApplicantAge:    parseInt(getEnv("MIN_APPLICANT_AGE", "21"), 21),

		UploadMaxBytes:  int64(parseInt(getEnv("UPLOAD_MAX_BYTES", "10000000"), 10_000_000)),
		BackupMaxBytes:  int64(parseInt(getEnv("BACKUP_MAX_BYTES", "104857600"), 100*1024*1024)),
		RestoreMaxBytes: int64(parseInt(getEnv("RESTORE_MAX_BYTES", "1073741824"), 1<<30)),

		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:            getEnv("ADMIN_EMAIL", "admin@aloha.com"),
		AdminPassword:         getEnv("ADMIN_PASSWORD", "Admin123!"),
		AdminSecurityQuestion: getEnv("ADMIN_SECURITY_QUESTION", "What is the agency name?"),
		AdminSecurityAnswer:   getEnv("ADMIN_SECURITY_ANSWER", "aloha"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		SentryDSN: getEnv("SENTRY_DSN", ""),
	}
}

// DatabasePath is the location of the store file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.VolumePath, c.DatabaseFile)
}

// UploadsDir holds applicant resumes and ID images.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.VolumePath, "uploads")
}

// defaultVolumePath falls back to a data directory next to the executable.
func defaultVolumePath() string {
	exe, err := os.Executable()
	if err != nil {
		return "data"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "data")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
