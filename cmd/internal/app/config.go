package app

import (
	"errors"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBAutoMigrate bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// Empty disables CORS handling; "*" allows any origin.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// JSON-lines audit file, written in addition to the default sink.
	// Defaults to DefaultAuditFile when no database is configured.
	AuditFile string

	UploadDir      string
	UploadMaxBytes int64

	// Uploads go to S3 when S3Bucket is set.
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// DefaultAuditFile keeps the auth trail durable in memory-store mode.
const DefaultAuditFile = "auth_audit.log"

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	databaseURL := EnvString("COLLAB_DATABASE_URL", "")
	auditDefault := ""
	if databaseURL == "" {
		auditDefault = DefaultAuditFile
	}

	return Config{
		HTTPAddr: EnvString("COLLAB_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("COLLAB_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("COLLAB_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("COLLAB_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("COLLAB_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("COLLAB_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("COLLAB_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("COLLAB_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:   databaseURL,
		DBMaxConns:    EnvInt32("COLLAB_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("COLLAB_DB_MIN_CONNS", 0),
		DBAutoMigrate: EnvBool("COLLAB_DB_AUTO_MIGRATE", false),

		ReadinessRequireDB: EnvBool("COLLAB_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvCSV("COLLAB_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("COLLAB_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("COLLAB_CORS_MAX_AGE_SECONDS", 600),

		AuditFile: EnvString("COLLAB_AUDIT_FILE", auditDefault),

		UploadDir:      EnvString("COLLAB_UPLOAD_DIR", "uploads"),
		UploadMaxBytes: EnvInt64("COLLAB_UPLOAD_MAX_BYTES", 10<<20),

		S3Bucket:    EnvString("COLLAB_S3_BUCKET", ""),
		S3Region:    EnvString("COLLAB_S3_REGION", "us-east-1"),
		S3Endpoint:  EnvString("COLLAB_S3_ENDPOINT", ""),
		S3AccessKey: EnvString("COLLAB_S3_ACCESS_KEY", ""),
		S3SecretKey: EnvString("COLLAB_S3_SECRET_KEY", ""),
	}
}

// ErrNoDatabase is returned by commands that need COLLAB_DATABASE_URL.
var ErrNoDatabase = errors.New("app: COLLAB_DATABASE_URL is not set")
