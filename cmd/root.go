package cmd

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cvrank"
)

type Config struct {
	JobFile        string          `mapstructure:"job-file"`
	CandidatesFile string          `mapstructure:"candidates-file"`
	Embedder       *EmbedderConfig `mapstructure:"embedder"`
	Store          *StoreConfig    `mapstructure:"store"`
	Matching       *MatchingConfig `mapstructure:"matching"`
}

type EmbedderConfig struct {
	Provider string        `mapstructure:"provider"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	APIVersion string `mapstructure:"api-version"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type GeminiConfig struct {
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type StoreConfig struct {
	Provider string        `mapstructure:"provider"`
	Qdrant   *QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"api-key"`
	Collection string `mapstructure:"collection"`
}

type MatchingConfig struct {
	TopK         int           `mapstructure:"top-k"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cvrank ranks candidates against a job specification using semantic similarity and importance weighting",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("job-file", "CVRANK_JOB_FILE"); err != nil {
		log.Fatalf("binding CVRANK_JOB_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("candidates-file", "CVRANK_CANDIDATES_FILE"); err != nil {
		log.Fatalf("binding CVRANK_CANDIDATES_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cvrank.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the run command. If there is no config, we can skip initialization.
	if runCmd.CalledAs() == "" {
		return
	}

	// API keys are commonly kept in a local .env file.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
