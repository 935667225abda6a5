package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	DefaultMaxRecordLen   = 5000
	DefaultMaxStoreSize   = 10_000_000
	DefaultSuccessMessage = "It will be read soon."
	DefaultLang           = "en"
	DefaultCharset        = "ASCII"
	DefaultTitle          = "Result"
	DefaultHTTPAddr       = ":8080"

	// EnvPrefix is the prefix of environment variables e.g. INSERTROW_STORE_PATH
	EnvPrefix = "INSERTROW"
)

var ErrNoStorePath = errors.New("store path is not set")

// Archive configures upload of store snapshots to s3-compatible storage
type Archive struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Access   string `yaml:"access" mapstructure:"access"`
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Region   string `yaml:"region" mapstructure:"region"`
	// remote path prefix, e.g. "apps/guestbook"
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// "br" (default), "zst" or "gz"
	Compression string `yaml:"compression" mapstructure:"compression"`
}

// Remote is the web host where the store lives, used to download it
type Remote struct {
	User    string `yaml:"user" mapstructure:"user"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    uint   `yaml:"port" mapstructure:"port"`
	KeyPath string `yaml:"key_path" mapstructure:"key_path"`
	// path of the store on the remote host
	Path string `yaml:"path" mapstructure:"path"`
}

type Config struct {
	// path of the store file, required
	StorePath string `yaml:"store_path" mapstructure:"store_path"`
	// max size of escaped content of a record
	MaxRecordLen int `yaml:"max_record_len" mapstructure:"max_record_len"`
	// inserts are rejected once the store reaches this size
	MaxStoreSize int64 `yaml:"max_store_size" mapstructure:"max_store_size"`
	// fsync after every record
	SyncWrites bool `yaml:"sync_writes" mapstructure:"sync_writes"`

	// used when rendering the response page
	SuccessMessage string `yaml:"success_message" mapstructure:"success_message"`
	Lang           string `yaml:"lang" mapstructure:"lang"`
	Charset        string `yaml:"charset" mapstructure:"charset"`
	Title          string `yaml:"title" mapstructure:"title"`

	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr"`
	// if empty, we don't write log files
	LogDir  string `yaml:"log_dir" mapstructure:"log_dir"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`

	Archive Archive `yaml:"archive" mapstructure:"archive"`
	Remote  Remote  `yaml:"remote" mapstructure:"remote"`
}

// Default returns config with all defaults filled. StorePath is not set
func Default() *Config {
	return &Config{
		MaxRecordLen:   DefaultMaxRecordLen,
		MaxStoreSize:   DefaultMaxStoreSize,
		SuccessMessage: DefaultSuccessMessage,
		Lang:           DefaultLang,
		Charset:        DefaultCharset,
		Title:          DefaultTitle,
		HTTPAddr:       DefaultHTTPAddr,
		Archive: Archive{
			Compression: "br",
		},
		Remote: Remote{
			Port: 22,
		},
	}
}

// Validate checks required values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StorePath) == "" {
		return ErrNoStorePath
	}
	if c.MaxRecordLen <= 0 {
		return fmt.Errorf("max_record_len must be positive, is %d", c.MaxRecordLen)
	}
	if c.MaxStoreSize <= 0 {
		return fmt.Errorf("max_store_size must be positive, is %d", c.MaxStoreSize)
	}
	switch c.Archive.Compression {
	case "br", "zst", "gz":
		// ok
	default:
		return fmt.Errorf("archive.compression must be br, zst or gz, is '%s'", c.Archive.Compression)
	}
	return nil
}

// SetDefaults registers defaults in v so that config file, env
// variables and flags only need to override what they change
func SetDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("store_path", "")
	v.SetDefault("max_record_len", def.MaxRecordLen)
	v.SetDefault("max_store_size", def.MaxStoreSize)
	v.SetDefault("sync_writes", def.SyncWrites)
	v.SetDefault("success_message", def.SuccessMessage)
	v.SetDefault("lang", def.Lang)
	v.SetDefault("charset", def.Charset)
	v.SetDefault("title", def.Title)
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("log_dir", def.LogDir)
	v.SetDefault("verbose", def.Verbose)
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access", "")
	v.SetDefault("archive.secret", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("archive.compression", def.Archive.Compression)
	v.SetDefault("remote.user", "")
	v.SetDefault("remote.host", "")
	v.SetDefault("remote.port", def.Remote.Port)
	v.SetDefault("remote.key_path", "")
	v.SetDefault("remote.path", "")
}

// Load resolves config from v: defaults, optional config file (configPath),
// INSERTROW_* environment variables and flags already bound to v.
// Later sources override earlier ones
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file '%s': %w", configPath, err)
		}
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}

// YAML returns the config as yaml, with secrets redacted
func (c *Config) YAML() ([]byte, error) {
	c2 := *c
	c2.Archive.Access = redact(c2.Archive.Access)
	c2.Archive.Secret = redact(c2.Archive.Secret)
	return yaml.Marshal(&c2)
}

// Parse decodes yaml config. Missing values get defaults
func Parse(d []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(d, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
