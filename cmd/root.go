package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/talent-ranker/internal/ranking"
)

const (
	app = "talent-ranker"
)

type Config struct {
	JobFile        string          `mapstructure:"job-file"`
	CandidatesFile string          `mapstructure:"candidates-file"`
	ExcludeFile    string          `mapstructure:"exclude-file"`
	MetricsFile    string          `mapstructure:"metrics-file"`
	Weights        ranking.Weights `mapstructure:"weights"`
	Ranking        *RankingConfig  `mapstructure:"ranking"`
	Filters        *FiltersConfig  `mapstructure:"filters"`
	AI             *AIConfig       `mapstructure:"ai"`
}

type RankingConfig struct {
	Workers           int           `mapstructure:"workers"`
	SkillStrategy     string        `mapstructure:"skill-strategy"`
	SemanticThreshold float64       `mapstructure:"semantic-threshold"`
	ProviderTimeout   time.Duration `mapstructure:"provider-timeout"`
}

type FiltersConfig struct {
	MinimumScore   float64  `mapstructure:"minimum-score"`
	Top            int      `mapstructure:"top"`
	MustHaveSkills []string `mapstructure:"must-have-skills"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
	Cache        *CacheConfig  `mapstructure:"cache"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	Host  string `mapstructure:"host"`
	Model string `mapstructure:"model"`
	Token string `mapstructure:"token"`
}

type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis-addr"`
	TTL       time.Duration `mapstructure:"ttl"`
	Prefix    string        `mapstructure:"prefix"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talent-ranker scores candidate profiles against a job requisition and ranks them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// A .env file is optional. Values already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	envs := map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"ai.openai.token":        "OPENAI_API_KEY",
		"ai.cache.redis-addr":    "TALENT_RANKER_REDIS_ADDR",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	defaults := ranking.DefaultWeights()
	viper.SetDefault("weights.skill", defaults.Skill)
	viper.SetDefault("weights.experience", defaults.Experience)
	viper.SetDefault("weights.education", defaults.Education)
	viper.SetDefault("weights.text", defaults.Text)
	viper.SetDefault("weights.location", defaults.Location)
	viper.SetDefault("ranking.skill-strategy", string(ranking.StrategyGreedy))
	viper.SetDefault("ranking.semantic-threshold", ranking.DefaultSemanticThreshold)
	viper.SetDefault("ranking.provider-timeout", 5*time.Second)
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", providerNgram)
	viper.SetDefault("ai.max-log-length", 200)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talent-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for rank command now. If there is no config, we can skip initialization
	if rankCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting can come from flags and env, so a missing default config is fine.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
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
