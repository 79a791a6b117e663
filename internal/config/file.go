package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the optional TOML config file. Every value only supplies a
// default for the matching environment variable.
type fileConfig struct {
	Web struct {
		Host           string   `toml:"host"`
		Port           int      `toml:"port"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"web"`
	Client struct {
		BackendURL string `toml:"backend_url"`
		Timeout    string `toml:"timeout"`
	} `toml:"client"`
	Classifier struct {
		Backend string `toml:"backend"`
		Seed    int64  `toml:"seed"`
	} `toml:"classifier"`
	Ollama struct {
		URL   string `toml:"url"`
		Model string `toml:"model"`
	} `toml:"ollama"`
	LlamaCpp struct {
		URL   string `toml:"url"`
		Model string `toml:"model"`
	} `toml:"llamacpp"`
	MQTT struct {
		Broker      string `toml:"broker"`
		TopicPrefix string `toml:"topic_prefix"`
		Timeout     string `toml:"timeout"`
	} `toml:"mqtt"`
	Storage struct {
		SessionDir  string `toml:"session_dir"`
		RedisURL    string `toml:"redis_url"`
		RedisPrefix string `toml:"redis_prefix"`
		SessionTTL  string `toml:"session_ttl"`
	} `toml:"storage"`
	Database struct {
		URL string `toml:"url"`
	} `toml:"database"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// values flattens the file into environment variable names. Empty values are skipped.
func (f *fileConfig) values() map[string]string {
	out := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set("WEB_HOST", f.Web.Host)
	if f.Web.Port > 0 {
		set("WEB_PORT", strconv.Itoa(f.Web.Port))
	}
	set("WEB_ALLOWED_ORIGINS", strings.Join(f.Web.AllowedOrigins, ","))
	set("BACKEND_URL", f.Client.BackendURL)
	set("BACKEND_TIMEOUT", f.Client.Timeout)
	set("EMOTION_CLASSIFIER", f.Classifier.Backend)
	if f.Classifier.Seed != 0 {
		set("MOCK_CLASSIFIER_SEED", strconv.FormatInt(f.Classifier.Seed, 10))
	}
	set("OLLAMA_URL", f.Ollama.URL)
	set("OLLAMA_MODEL", f.Ollama.Model)
	set("LLAMACPP_URL", f.LlamaCpp.URL)
	set("LLAMACPP_MODEL", f.LlamaCpp.Model)
	set("MQTT_BROKER", f.MQTT.Broker)
	set("MQTT_TOPIC_PREFIX", f.MQTT.TopicPrefix)
	set("MQTT_TIMEOUT", f.MQTT.Timeout)
	set("SESSION_DIR", f.Storage.SessionDir)
	set("REDIS_URL", f.Storage.RedisURL)
	set("REDIS_PREFIX", f.Storage.RedisPrefix)
	set("SESSION_TTL", f.Storage.SessionTTL)
	set("DATABASE_URL", f.Database.URL)
	set("LOG_LEVEL", f.Log.Level)
	set("LOG_FORMAT", f.Log.Format)
	return out
}

// LoadFile reads a TOML config file whose values act as defaults for the
// environment. Secrets (API keys, passwords) are only read from the environment.
// An empty path clears previously loaded file values.
func LoadFile(path string) error {
	if path == "" {
		fileValues = nil
		return nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the --config flag
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fileValues = fc.values()
	return nil
}
