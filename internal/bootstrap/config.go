package bootstrap

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort           string        `mapstructure:"SERVER_PORT"`
	EnginePath           string        `mapstructure:"ENGINE_PATH"`
	EngineArgs           []string      `mapstructure:"ENGINE_ARGS"`
	EngineThreads        int           `mapstructure:"ENGINE_THREADS"`
	EngineHashMB         int           `mapstructure:"ENGINE_HASH_MB"`
	EngineMultiPV        int           `mapstructure:"ENGINE_MULTIPV"`
	EngineStartTimeout   time.Duration `mapstructure:"ENGINE_START_TIMEOUT"`
	EngineQuitTimeout    time.Duration `mapstructure:"ENGINE_QUIT_TIMEOUT"`
	EngineRequestTimeout time.Duration `mapstructure:"ENGINE_REQUEST_TIMEOUT"`
	BestMoveDepth        int           `mapstructure:"BESTMOVE_DEPTH"`
	ReviewDepth          int           `mapstructure:"REVIEW_DEPTH"`
	ReviewRetryBudget    int           `mapstructure:"REVIEW_RETRY_BUDGET"`
	RedisUrl             string        `mapstructure:"REDIS_URL"`
	EvalCacheTTL         time.Duration `mapstructure:"EVAL_CACHE_TTL"`
	IsLocalCors          bool          `mapstructure:"LOCAL_CORS"`
}

var defaults = map[string]any{
	"SERVER_PORT":            "8080",
	"ENGINE_PATH":            "stockfish",
	"ENGINE_ARGS":            []string{},
	"ENGINE_THREADS":         1,
	"ENGINE_HASH_MB":         64,
	"ENGINE_MULTIPV":         1,
	"ENGINE_START_TIMEOUT":   10 * time.Second,
	"ENGINE_QUIT_TIMEOUT":    2 * time.Second,
	"ENGINE_REQUEST_TIMEOUT": 30 * time.Second,
	"BESTMOVE_DEPTH":         20,
	"REVIEW_DEPTH":           15,
	"REVIEW_RETRY_BUDGET":    1,
	"REDIS_URL":              "",
	"EVAL_CACHE_TTL":         24 * time.Hour,
	"LOCAL_CORS":             false,
}

// Setup reads the env-format file at cfgPath when it exists. Environment
// variables override file values, defaults fill the rest.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
