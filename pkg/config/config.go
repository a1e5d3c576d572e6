package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host          string
	Port          string
	GinMode       string
	LogLevel      string
	DatabaseURL   string
	SQLitePath    string
	JWTSecret     string
	SessionExpiry time.Duration
	SecureCookie  bool
	AdminUsers    []string
	EncryptionKey string

	AIProvider    string
	OpenAIAPIKey  string
	OpenAIAPIBase string
	OpenAIModel   string
	OllamaBaseURL string
	OllamaModel   string
	GeminiAPIKey  string
	LLMTimeout    time.Duration

	IMAPServer  string
	IMAPPort    int
	IMAPSubject string
	IMAPTimeout time.Duration

	DownloadDir     string
	RenamedDir      string
	StaticDir       string
	ExportRetention time.Duration
	ImportWorkers   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ProgressTTL   time.Duration

	RabbitMQURL string
}

// fileValues holds keys read from the optional YAML file. Environment variables win.
var fileValues = map[string]string{}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	fileValues = map[string]string{}
	path := getEnv("CONFIG_FILE", "config.yaml")
	if values, err := loadYAMLFile(path); err == nil {
		fileValues = values
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
	}

	return &Config{
		Host:          getEnv("APP_HOST", "0.0.0.0"),
		Port:          getEnv("APP_PORT", "5001"),
		GinMode:       getEnv("GIN_MODE", "release"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "invoices.db"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		SessionExpiry: getDuration("SESSION_EXPIRY", 24*time.Hour),
		SecureCookie:  getEnv("SECURE_COOKIE", "false") == "true",
		AdminUsers:    getList("ADMIN_USERS"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef"),

		AIProvider:    getEnv("AI_PROVIDER", "openai"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIBase: getEnv("OPENAI_API_BASE", "http://10.10.10.16:3000"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		LLMTimeout:    getDuration("LLM_TIMEOUT", 60*time.Second),

		IMAPServer:  getEnv("IMAP_SERVER", "imap.qq.com"),
		IMAPPort:    getInt("IMAP_PORT", 993),
		IMAPSubject: getEnv("IMAP_SUBJECT", "发票"),
		IMAPTimeout: getDuration("IMAP_TIMEOUT", 30*time.Second),

		DownloadDir:     getEnv("DOWNLOAD_DIR", "downloads"),
		RenamedDir:      getEnv("RENAMED_DIR", "renamed_invoices"),
		StaticDir:       getEnv("STATIC_DIR", "static"),
		ExportRetention: getDuration("EXPORT_RETENTION", 24*time.Hour),
		ImportWorkers:   getInt("IMPORT_WORKERS", 1),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		ProgressTTL:   getDuration("PROGRESS_TTL", time.Hour),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// loadYAMLFile reads a flat YAML document. Keys are matched case-insensitively
// against environment variable names, so `openai_model` overrides OPENAI_MODEL's default.
func loadYAMLFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := fileValues[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

// getList splits a comma separated value, dropping empty items.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := getEnv(key, ""); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := getEnv(key, ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
