package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/emotion-check/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed recommendations.yaml
var recommendationsYAML []byte

type Config struct {
	Web             WebConfig
	Client          ClientConfig
	Classifier      ClassifierConfig
	OpenAI          OpenAIConfig
	Gemini          GeminiConfig
	Ollama          OllamaConfig
	LlamaCpp        LlamaCppConfig
	MQTT            MQTTConfig
	Storage         StorageConfig
	Database        DatabaseConfig
	Log             LogConfig
	Recommendations RecommendationsConfig
}

type WebConfig struct {
	Host           string   // defaults to 0.0.0.0
	Port           int      // defaults to 5000
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

type ClientConfig struct {
	BackendURL string        // defaults to http://localhost:5000
	Timeout    time.Duration // per request
}

type ClassifierConfig struct {
	Backend string // mock, openai, gemini, ollama, llamacpp, mqtt; empty picks the first configured one
	Seed    int64  // seed for the mock classifier, 0 means time based
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string // defaults to http://localhost:11434
	Model string // defaults to llama3.2-vision:11b
}

type LlamaCppConfig struct {
	URL   string // defaults to http://localhost:8080
	Model string // defaults to llava
}

type MQTTConfig struct {
	Broker      string // e.g. tcp://localhost:1883, empty disables the MQTT classifier
	Username    string
	Password    string
	TopicPrefix string        // defaults to emotion/rpc/classify
	Timeout     time.Duration // wait for a worker reply
}

type StorageConfig struct {
	SessionDir  string        // file store root, defaults to ./sessions
	RedisURL    string        // redis://host:6379/0, enables the Redis store
	RedisPrefix string        // defaults to emotion-check
	SessionTTL  time.Duration // Redis key expiry
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, enables the PostgreSQL store
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

type RecommendationsConfig struct {
	GeneralTip string                           `yaml:"general_tip"`
	Emotions   map[string]EmotionRecommendation `yaml:"emotions"`
}

type EmotionRecommendation struct {
	Profile     MindProfile `yaml:"profile"`
	Suggestions []string    `yaml:"suggestions"`
}

// MindProfile is the mind-age baseline attached to a dominant emotion.
type MindProfile struct {
	BaseAge         int    `yaml:"base_age"`
	AgeMin          int    `yaml:"age_min"`
	AgeMax          int    `yaml:"age_max"`
	PersonalityType string `yaml:"personality_type"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := lookup(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envInt64 is envInt for values that may be any integer, including zero.
func envInt64(key string, defaultVal int64) int64 {
	s := lookup(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return defaultVal
}

// envDuration parses a Go duration string ("30s", "24h").
// Returns the default value if the env var is unset, invalid, or not positive.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := lookup(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := lookup(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated value, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(lookup(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// fileValues holds values read from the optional TOML config file, keyed by the
// environment variable they default.
var fileValues map[string]string

// lookup returns the environment value for key, falling back to the config file.
func lookup(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fileValues[key]
}

func Load() *Config {
	var recs RecommendationsConfig
	if err := yaml.Unmarshal(recommendationsYAML, &recs); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded recommendations.yaml: " + err.Error())
	}

	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 5000),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Client: ClientConfig{
			BackendURL: envString("BACKEND_URL", "http://localhost:5000"),
			Timeout:    envDuration("BACKEND_TIMEOUT", constants.ClientTimeout),
		},
		Classifier: ClassifierConfig{
			Backend: strings.ToLower(lookup("EMOTION_CLASSIFIER")),
			Seed:    envInt64("MOCK_CLASSIFIER_SEED", 0),
		},
		OpenAI: OpenAIConfig{
			Token: lookup("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: lookup("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   lookup("OLLAMA_URL"),
			Model: lookup("OLLAMA_MODEL"),
		},
		LlamaCpp: LlamaCppConfig{
			URL:   lookup("LLAMACPP_URL"),
			Model: lookup("LLAMACPP_MODEL"),
		},
		MQTT: MQTTConfig{
			Broker:      lookup("MQTT_BROKER"),
			Username:    lookup("MQTT_USERNAME"),
			Password:    lookup("MQTT_PASSWORD"),
			TopicPrefix: envString("MQTT_TOPIC_PREFIX", "emotion/rpc/classify"),
			Timeout:     envDuration("MQTT_TIMEOUT", constants.MQTTResponseTimeout),
		},
		Storage: StorageConfig{
			SessionDir:  envString("SESSION_DIR", constants.DefaultSessionDir),
			RedisURL:    lookup("REDIS_URL"),
			RedisPrefix: envString("REDIS_PREFIX", "emotion-check"),
			SessionTTL:  envDuration("SESSION_TTL", constants.DefaultSessionTTL),
		},
		Database: DatabaseConfig{
			URL:          lookup("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Recommendations: recs,
	}
}

// GetRecommendation returns the recommendation entry for an emotion, falling back
// to neutral for unknown emotions.
func (c *Config) GetRecommendation(emotion string) EmotionRecommendation {
	if rec, ok := c.Recommendations.Emotions[emotion]; ok {
		return rec
	}
	return c.Recommendations.Emotions["neutral"]
}
