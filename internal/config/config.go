package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the monitor service.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	AirflowBaseURL  string
	AirflowUser     string
	AirflowPassword string
	AirflowTimeout  time.Duration
	RecentRunsLimit int

	CORSOrigins []string

	LogFormat string
	LogFile   string
	Debug     bool
}

const envPrefix = "APP"

var defaults = map[string]any{
	"listen_addr":          ":8000",
	"read_timeout_sec":     10,
	"write_timeout_sec":    20,
	"shutdown_timeout_sec": 10,
	"airflow_api_url":      "http://localhost:8080/api/v1",
	"airflow_user":         "airflow",
	"airflow_password":     "airflow",
	"airflow_timeout_sec":  5,
	"recent_runs_limit":    5,
	"cors_origins":         "",
	"log_format":           "text",
	"log_file":             "",
	"debug":                false,
}

// New returns a viper instance with defaults and APP_* environment binding.
// Callers may bind command-line flags on it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	return v
}

// FromEnv loads configuration from env files and environment variables.
func FromEnv() Config {
	return Load(New())
}

// Load resolves the final configuration from v. Env files are applied first
// and never override variables already present in the environment.
func Load(v *viper.Viper) Config {
	loadConfigDefaultsFromFile(v.GetString("config_file"))

	return Config{
		ListenAddr:      strings.TrimSpace(v.GetString("listen_addr")),
		ReadTimeout:     seconds(v, "read_timeout_sec"),
		WriteTimeout:    seconds(v, "write_timeout_sec"),
		ShutdownTimeout: seconds(v, "shutdown_timeout_sec"),
		AirflowBaseURL:  strings.TrimRight(strings.TrimSpace(v.GetString("airflow_api_url")), "/"),
		AirflowUser:     v.GetString("airflow_user"),
		AirflowPassword: v.GetString("airflow_password"),
		AirflowTimeout:  seconds(v, "airflow_timeout_sec"),
		RecentRunsLimit: positiveInt(v, "recent_runs_limit"),
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		LogFormat:       v.GetString("log_format"),
		LogFile:         v.GetString("log_file"),
		Debug:           v.GetBool("debug"),
	}
}

func loadConfigDefaultsFromFile(explicit string) {
	candidates := make([]string, 0, 3)
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, "./airflow-monitor.env", "/etc/default/airflow-monitor")

	for _, candidate := range candidates {
		abs := candidate
		if !filepath.IsAbs(candidate) {
			if wd, err := os.Getwd(); err == nil {
				abs = filepath.Join(wd, candidate)
			}
		}
		// godotenv.Load keeps variables that are already set.
		_ = godotenv.Load(abs)
	}
}

func seconds(v *viper.Viper, key string) time.Duration {
	n := v.GetInt(key)
	if n <= 0 {
		if def, ok := defaults[key].(int); ok {
			n = def
		}
	}
	return time.Duration(n) * time.Second
}

func positiveInt(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n <= 0 {
		if def, ok := defaults[key].(int); ok {
			return def
		}
	}
	return n
}

func splitList(val string) []string {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
