// Package config reads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Skufu/symptomchecker/internal/history"
	"github.com/Skufu/symptomchecker/internal/oracle"
)

type Config struct {
	Port    string
	GinMode string

	ModelPath      string
	ModelFormat    string
	ORTLibraryPath string
	ONNXInputName  string
	ONNXOutputName string
	StrictSchema   bool

	EnableDB    bool
	DBDriver    string
	DatabaseURL string

	LogLevel     string
	MaxBodyBytes int64
	AllowOrigins []string
}

// Load reads envFiles (".env" when none are given; missing files are ignored) and then the
// process environment.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	maxBody, err := strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil || maxBody <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be a positive integer")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		ModelPath:      getEnv("MODEL_PATH", "disease_prediction_model.json"),
		ModelFormat:    os.Getenv("MODEL_FORMAT"),
		ORTLibraryPath: os.Getenv("ORT_LIBRARY_PATH"),
		ONNXInputName:  getEnv("ONNX_INPUT_NAME", "float_input"),
		ONNXOutputName: getEnv("ONNX_OUTPUT_NAME", "label"),
		StrictSchema:   strings.EqualFold(getEnv("STRICT_SCHEMA", "false"), "true"),
		EnableDB:       strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", history.DriverPostgres)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxBodyBytes:   maxBody,
		AllowOrigins:   splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if cfg.EnableDB && cfg.DBDriver != history.DriverPostgres && cfg.DBDriver != history.DriverSQLite {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", history.DriverPostgres, history.DriverSQLite, cfg.DBDriver)
	}
	if _, err := oracle.DetectFormat(cfg.ModelPath, cfg.ModelFormat); err != nil {
		return nil, fmt.Errorf("MODEL_PATH/MODEL_FORMAT: %w", err)
	}

	return cfg, nil
}

// OracleOptions maps the model settings onto oracle.Open.
func (c *Config) OracleOptions() oracle.Options {
	return oracle.Options{
		Path:   c.ModelPath,
		Format: c.ModelFormat,
		ONNX: oracle.ONNXOptions{
			LibraryPath: c.ORTLibraryPath,
			InputName:   c.ONNXInputName,
			OutputName:  c.ONNXOutputName,
		},
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
