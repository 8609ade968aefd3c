package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Tavus    TavusConfig    `mapstructure:"tavus"`
	Tts      TtsConfig      `mapstructure:"tts"`
}

// AuthConfig holds identity provider and cookie session settings.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	SessionSecret  string `mapstructure:"session_secret"`
	TokenTTL       int    `mapstructure:"token_ttl"` // minutes
	RequireConfirm bool   `mapstructure:"require_confirm"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LLM provider selection
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // "ollama" or "openai"
}

type OllamaConfig struct {
	Host    string `mapstructure:"host"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`   // Optional, defaults to OpenAI API
	MaxTokens int    `mapstructure:"max_tokens"` // Optional, defaults to model's max
	Timeout   int    `mapstructure:"timeout"`
}

// TavusConfig holds credentials for the conversational-video API.
type TavusConfig struct {
	APIKey    string `mapstructure:"api_key"`
	ReplicaID string `mapstructure:"replica_id"`
	PersonaID string `mapstructure:"persona_id"`
	BaseURL   string `mapstructure:"base_url"`
	Timeout   int    `mapstructure:"timeout"` // seconds
}

type TtsConfig struct {
	Type            string `mapstructure:"type"`
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.BindEnv("auth.jwt_secret", "SAFETYLEARN_JWT_SECRET")
	viper.BindEnv("openai.api_key", "SAFETYLEARN_OPENAI_API_KEY")
	viper.BindEnv("openai.model", "OPENAI_MODEL")
	viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("llm.provider", "LLM_PROVIDER")
	viper.BindEnv("tavus.api_key", "TAVUS_API_KEY")
	viper.BindEnv("tavus.replica_id", "TAVUS_REPLICA_ID")
	viper.BindEnv("tavus.persona_id", "TAVUS_PERSONA_ID")
	viper.BindEnv("tts.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")

	viper.SetDefault("auth.jwt_secret", "devsecret-change-me")
	viper.SetDefault("auth.session_secret", "your-secret-key-change-this-in-production")
	viper.SetDefault("auth.token_ttl", 60)
	viper.SetDefault("auth.require_confirm", false)

	viper.SetDefault("database.path", "./safetylearn.db")

	viper.SetDefault("llm.provider", "ollama")

	viper.SetDefault("ollama.host", "http://localhost:11434")
	viper.SetDefault("ollama.model", "llama3.2")
	viper.SetDefault("ollama.timeout", 50)

	viper.SetDefault("openai.timeout", 30)
	viper.SetDefault("openai.max_tokens", 1000)

	viper.SetDefault("tavus.base_url", "https://tavusapi.com")
	viper.SetDefault("tavus.timeout", 30)

	viper.SetDefault("tts.enabled", true)
	viper.SetDefault("tts.type", "google")

	// Allow environment variables
	viper.SetEnvPrefix("SAFETYLEARN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
