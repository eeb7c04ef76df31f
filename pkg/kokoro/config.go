package kokoro

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/kokoroctl/pkg/configutil"
	"github.com/harunnryd/kokoroctl/pkg/errorsx"
	"github.com/harunnryd/kokoroctl/pkg/synth"
	"github.com/harunnryd/kokoroctl/pkg/transports"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"
)

type Config struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Transport        string        `mapstructure:"transport"`
	URL              string        `mapstructure:"url"`
	Framing          string        `mapstructure:"framing"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	IOTimeout        time.Duration `mapstructure:"io_timeout"`
	MaxResponseBytes int           `mapstructure:"max_response_bytes"`
	Voice            string        `mapstructure:"voice"`
	Speed            float64       `mapstructure:"speed"`
	Language         string        `mapstructure:"language"`
	UploadToS3       bool          `mapstructure:"upload_to_s3"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	Privacy          PrivacyConfig `mapstructure:"privacy"`
	Metrics          MetricsConfig `mapstructure:"metrics"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type MetricsConfig struct {
	JSONLPath string `mapstructure:"jsonl_path"`
}

// LoadOptions selects the optional config file and the CLI flags layered on top.
// Flags are looked up by key with underscores replaced by hyphens.
type LoadOptions struct {
	Path  string
	Flags *pflag.FlagSet
}

// envBindings keeps the variable names the original client read.
var envBindings = map[string][]string{
	"host":     {"MCP_CLIENT_HOST", "KOKOROCTL_HOST"},
	"port":     {"MCP_PORT", "KOKOROCTL_PORT"},
	"voice":    {"TTS_VOICE", "KOKOROCTL_VOICE"},
	"speed":    {"TTS_SPEED", "KOKOROCTL_SPEED"},
	"language": {"TTS_LANGUAGE", "KOKOROCTL_LANGUAGE"},
}

var configSchema = configutil.Schema{
	Optional: []string{
		"host", "port", "transport", "url", "framing",
		"connect_timeout", "io_timeout", "max_response_bytes",
		"voice", "speed", "language", "upload_to_s3",
		"log_level", "log_format",
		"privacy.redact_pii", "metrics.jsonl_path",
	},
}

// LoadConfig resolves configuration with precedence flag > env > file > default.
func LoadConfig(opts LoadOptions) (Config, error) {
	v := viper.New()
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 9876)
	v.SetDefault("transport", TransportTCP)
	v.SetDefault("url", "")
	v.SetDefault("framing", string(transports.FramingJSON))
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("io_timeout", 120*time.Second)
	v.SetDefault("max_response_bytes", transports.DefaultMaxResponseBytes)
	v.SetDefault("voice", synth.DefaultVoice)
	v.SetDefault("speed", synth.DefaultSpeed)
	v.SetDefault("language", synth.DefaultLanguage)
	v.SetDefault("upload_to_s3", true)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("metrics.jsonl_path", "")

	v.SetEnvPrefix("KOKOROCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, configErr(fmt.Errorf("bind env %s: %w", key, err))
		}
	}

	if opts.Flags != nil {
		for _, key := range configSchema.Optional {
			f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, configErr(fmt.Errorf("bind flag %s: %w", f.Name, err))
			}
		}
	}

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, configErr(fmt.Errorf("read config: %w", err))
		}
		if err := configutil.ValidateSettings(v.AllSettings(), configSchema); err != nil {
			return Config{}, configErr(fmt.Errorf("config %s: %w", opts.Path, err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, configErr(fmt.Errorf("unmarshal: %w", err))
	}

	expandEnvStrings(&cfg)
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))

	if err := cfg.Validate(); err != nil {
		return Config{}, configErr(fmt.Errorf("validate config: %w", err))
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTCP:
		if err := configutil.RequireString(c.Host, "host"); err != nil {
			return err
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
		}
		if _, err := transports.ParseFraming(c.Framing); err != nil {
			return err
		}
	case TransportWebsocket:
		if err := configutil.RequireString(c.URL, "url"); err != nil {
			return err
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
		}
	default:
		return fmt.Errorf("transport must be %s or %s, got %q", TransportTCP, TransportWebsocket, c.Transport)
	}
	if c.ConnectTimeout < 0 || c.IOTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if !(c.Speed > 0) {
		return fmt.Errorf("speed must be > 0, got %v", c.Speed)
	}
	return configutil.RequireString(c.Voice, "voice")
}

// Params returns synthesis parameters seeded with the configured defaults.
func (c Config) Params() synth.Params {
	return synth.Params{
		Voice:      c.Voice,
		Speed:      c.Speed,
		Language:   c.Language,
		UploadToS3: c.UploadToS3,
	}
}

func configErr(err error) error {
	return errorsx.Wrap(err, errorsx.ReasonConfig)
}

// expandEnvStrings replaces ${VAR} references in every string field.
func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
