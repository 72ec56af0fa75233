package config

import (
	"context"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common"
	bitmapconfig "github.com/gaze-network/bitmap-watcher/modules/bitmap/config"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
	"github.com/gaze-network/bitmap-watcher/pkg/middleware/requestcontext"
	"github.com/gaze-network/bitmap-watcher/pkg/middleware/requestlogger"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configOnce sync.Once
	config     = &Config{
		Logger: logger.Config{
			Output: "TEXT",
		},
		Network: common.NetworkMainnet,
		HTTPServer: HTTPServerConfig{
			Port: 8080,
		},
		Stream: StreamConfig{
			RetryDelay:   2 * time.Second,
			PingInterval: 30 * time.Second,
		},
	}
)

type Config struct {
	EnableModules []string         `mapstructure:"enable_modules"`
	APIOnly       bool             `mapstructure:"api_only"`
	Logger        logger.Config    `mapstructure:"logger"`
	Network       common.Network   `mapstructure:"network"`
	HTTPServer    HTTPServerConfig `mapstructure:"http_server"`
	Stream        StreamConfig     `mapstructure:"stream"`
	MempoolSpace  MempoolSpace     `mapstructure:"mempool_space"`
	Unisat        Unisat           `mapstructure:"unisat"`
	Ordinals      Ordinals         `mapstructure:"ordinals"`
	Modules       Modules          `mapstructure:"modules"`
}

type Modules struct {
	Bitmap bitmapconfig.Config `mapstructure:"bitmap"`
}

type HTTPServerConfig struct {
	Port      int                               `mapstructure:"port"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
}

// StreamConfig is the mempool event feed subscription.
type StreamConfig struct {
	URL              string        `mapstructure:"url"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PingMessage      string        `mapstructure:"ping_message"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	// ReferenceBaseURL is the explorer linked from notifications. Default is https://mempool.space.
	ReferenceBaseURL string `mapstructure:"reference_base_url"`
}

type MempoolSpace struct {
	BaseURL string `mapstructure:"base_url"`
	Debug   bool   `mapstructure:"debug"`
}

type Unisat struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	Debug      bool          `mapstructure:"debug"`
}

type Ordinals struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RetryMax int           `mapstructure:"retry_max"`
}

// Parse parses the configuration from the environment, an optional `.env` file and the config file.
// If configFile is empty, `./config.yaml` is used if present.
func Parse(configFile ...string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WarnContext(ctx, "failed to load .env file", slogx.Error(err))
		}

		if len(configFile) > 0 && configFile[0] != "" {
			viper.SetConfigFile(configFile[0])
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) || errors.Is(err, fs.ErrNotExist) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
		logger.InfoContext(ctx, "loaded config successfully")
	})

	return *config
}

// Load returns the parsed configuration.
func Load() Config {
	return Parse()
}

// BindPFlag binds a command line flag to a configuration key.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("Something went wrong, failed to bind flag for config", slog.String("package", "config"), slogx.Error(err))
	}
}
