package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DB       DBConfig
	Gemini   GeminiConfig
	Pipeline PipelineConfig
	Logger   LoggerConfig

	// configFile is where Save writes mutable settings back.
	configFile string
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// GeminiConfig holds the mutable analysis-service settings. These are the
// only values Save persists; they survive process restarts.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type PipelineConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("db.path", "mockmaster.db")
	viper.SetDefault("gemini.model", "gemini-1.5-flash")
	viper.SetDefault("pipeline.max_retries", 3)
	viper.SetDefault("pipeline.initial_delay", 5*time.Second)
	viper.SetDefault("pipeline.analysis_timeout", 60*time.Second)
	viper.SetDefault("pipeline.max_concurrent", 4)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.env", "development")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine on first run; defaults plus env
		// variables are enough to start.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "config.yaml"
	} else {
		absPath, _ := filepath.Abs(configFile)
		fmt.Printf("Using config file: %s\n", absPath)
		configFile = absPath
	}

	config := &Config{
		DB: DBConfig{
			Path: viper.GetString("db.path"),
		},
		Gemini: GeminiConfig{
			APIKey: viper.GetString("gemini.api_key"),
			Model:  viper.GetString("gemini.model"),
		},
		Pipeline: PipelineConfig{
			MaxRetries:      viper.GetInt("pipeline.max_retries"),
			InitialDelay:    viper.GetDuration("pipeline.initial_delay"),
			AnalysisTimeout: viper.GetDuration("pipeline.analysis_timeout"),
			MaxConcurrent:   viper.GetInt("pipeline.max_concurrent"),
		},
		Logger: LoggerConfig{
			Level: viper.GetString("logger.level"),
			Env:   viper.GetString("logger.env"),
		},
		configFile: configFile,
	}

	// Override with environment variables if set
	if dbPath := os.Getenv("MOCKMASTER_DB_PATH"); dbPath != "" {
		config.DB.Path = dbPath
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	return config, nil
}

// SetAPIKey updates the analysis API credential in memory. Call Save to
// persist it.
func (c *Config) SetAPIKey(key string) {
	c.Gemini.APIKey = key
}

// SetModel updates the analysis model identifier in memory. Call Save to
// persist it.
func (c *Config) SetModel(model string) {
	c.Gemini.Model = model
}

// Save persists the mutable settings to the config file so they survive
// restarts.
func (c *Config) Save() error {
	viper.Set("db.path", c.DB.Path)
	viper.Set("gemini.api_key", c.Gemini.APIKey)
	viper.Set("gemini.model", c.Gemini.Model)

	if err := viper.WriteConfigAs(c.configFile); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", c.configFile, err)
	}
	return nil
}
