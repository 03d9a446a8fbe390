package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config agrupa la configuración de la aplicación leída del entorno.
type Config struct {
	Port   string
	AppEnv string

	DatabaseDSN string

	BaseURL          string
	StorageDir       string
	MediaURL         string
	StaticDir        string
	PlaceholderImage string

	SessionKey         string
	AdminUser          string
	AdminPass          string
	AdminAllowedEmails []string
	GoogleClientID     string
	GoogleClientSecret string

	WhatsAppNumber      string
	MaxUploadMB         int
	MaxAdditionalImages int

	LogLevel string
	LogFile  string
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func (c Config) GoogleLoginEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load lee variables de entorno. Las variables de .env tienen que cargarse antes
// (godotenv en main).
func Load() (Config, error) {
	cfg := Config{
		Port:               strings.TrimPrefix(getEnv("PORT", "8080"), ":"),
		AppEnv:             strings.ToLower(getEnv("APP_ENV", "development")),
		DatabaseDSN:        databaseDSN(),
		BaseURL:            strings.TrimRight(getEnv("BASE_URL", ""), "/"),
		StorageDir:         getEnv("STORAGE_DIR", "media"),
		MediaURL:           getEnv("MEDIA_URL", "/media/"),
		StaticDir:          getEnv("STATIC_DIR", "static"),
		PlaceholderImage:   getEnv("PLACEHOLDER_IMAGE", "/static/img/placeholder.png"),
		SessionKey:         getEnv("SESSION_KEY", ""),
		AdminUser:          getEnv("ADMIN_USER", "admin"),
		AdminPass:          getEnv("ADMIN_PASS", ""),
		AdminAllowedEmails: splitList(getEnv("ADMIN_ALLOWED_EMAILS", "")),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		WhatsAppNumber:     getEnv("WHATSAPP_NUMBER", ""),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:            getEnv("LOG_FILE", ""),
	}
	if !strings.HasSuffix(cfg.MediaURL, "/") {
		cfg.MediaURL += "/"
	}

	var err error
	if cfg.MaxUploadMB, err = getInt("MAX_UPLOAD_MB", 25); err != nil {
		return Config{}, err
	}
	if cfg.MaxAdditionalImages, err = getInt("MAX_ADDITIONAL_IMAGES", 5); err != nil {
		return Config{}, err
	}
	if cfg.MaxUploadMB <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MB debe ser mayor a 0")
	}

	if cfg.SessionKey == "" {
		if cfg.IsProduction() {
			return Config{}, fmt.Errorf("missing required env var: SESSION_KEY")
		}
		cfg.SessionKey = "dev-insecure-session-key"
	}
	if cfg.AdminPass == "" {
		if cfg.IsProduction() {
			return Config{}, fmt.Errorf("missing required env var: ADMIN_PASS")
		}
		cfg.AdminPass = "admin123"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	return cfg, nil
}

// databaseDSN usa DB_DSN si está; si no, arma el DSN con DB_* y POSTGRES_*.
func databaseDSN() string {
	if dsn := strings.TrimSpace(os.Getenv("DB_DSN")); dsn != "" {
		return dsn
	}
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := firstEnv("postgres", "DB_USER", "POSTGRES_USER")
	pass := firstEnv("postgres", "DB_PASSWORD", "POSTGRES_PASSWORD")
	name := firstEnv("naturalhome", "DB_NAME", "POSTGRES_DB")
	ssl := getEnv("DB_SSLMODE", "disable")
	return "host=" + host + " user=" + user + " password=" + pass + " dbname=" + name + " port=" + port + " sslmode=" + ssl
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, e := range strings.Split(raw, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
