// Package config loads strata settings from a YAML file, a dotenv file and
// STRATA_* environment variables, and builds the transformations, codec and
// store they describe.
package config

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/zoobzio/strata"
	"github.com/zoobzio/strata/bson"
	"github.com/zoobzio/strata/json"
	"github.com/zoobzio/strata/memory"
	"github.com/zoobzio/strata/mongo"
	"github.com/zoobzio/strata/msgpack"
	"github.com/zoobzio/strata/sqlite"
	"github.com/zoobzio/strata/yaml"
)

const (
	envPrefix      = "STRATA"
	configFileName = "strata"
	configFileType = "yaml"
)

// Config keys.
const (
	KeyHashAlgorithm    = "hash.algorithm"
	KeyEncryptAlgorithm = "encrypt.algorithm"
	KeyEncryptSecret    = "encrypt.secret_key"
	KeyEncryptIVSize    = "encrypt.iv_size"
	KeyFallbackLocale   = "localize.fallback_locale"
	KeyStoreDriver      = "store.driver"
	KeyStoreDSN         = "store.dsn"
	KeyStoreDatabase    = "store.database"
	KeyStoreCodec       = "store.codec"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the complete strata configuration.
type Config struct {
	Hash     HashConfig     `mapstructure:"hash"`
	Encrypt  EncryptConfig  `mapstructure:"encrypt"`
	Localize LocalizeConfig `mapstructure:"localize"`
	Store    StoreConfig    `mapstructure:"store"`
}

// HashConfig selects the digest used by hashed fields.
type HashConfig struct {
	Algorithm string `mapstructure:"algorithm"`
}

// EncryptConfig selects the cipher and key used by encrypted fields.
type EncryptConfig struct {
	Algorithm string `mapstructure:"algorithm"`
	// SecretKey is base64 encoded, or the raw key when it is not valid base64.
	SecretKey string `mapstructure:"secret_key"`
	IVSize    int    `mapstructure:"iv_size"`
}

// LocalizeConfig holds localized field settings.
type LocalizeConfig struct {
	FallbackLocale string `mapstructure:"fallback_locale"`
}

// StoreConfig selects the document store and its wire codec.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
	Codec    string `mapstructure:"codec"`
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	envFiles []string
	dirs     []string
}

// WithEnvFile loads dotenv files before reading the environment. Variables
// already set in the environment take precedence.
func WithEnvFile(paths ...string) Option {
	return func(l *loader) {
		l.envFiles = append(l.envFiles, paths...)
	}
}

// WithSearchPath adds a directory searched for strata.yaml when Load is
// given no explicit path.
func WithSearchPath(dir string) Option {
	return func(l *loader) {
		l.dirs = append(l.dirs, dir)
	}
}

// Defaults sets the default value of every key on v.
func Defaults(v *viper.Viper) {
	v.SetDefault(KeyHashAlgorithm, string(strata.HashSHA256))
	v.SetDefault(KeyEncryptAlgorithm, string(strata.EncryptAES256GCM))
	v.SetDefault(KeyEncryptSecret, "")
	v.SetDefault(KeyEncryptIVSize, strata.DefaultIVSize)
	v.SetDefault(KeyFallbackLocale, "en")
	v.SetDefault(KeyStoreDriver, DriverMemory)
	v.SetDefault(KeyStoreDSN, "")
	v.SetDefault(KeyStoreDatabase, "strata")
	v.SetDefault(KeyStoreCodec, "json")
}

// Load reads the configuration. An explicit path must exist; without one,
// strata.yaml is searched in the working directory and any WithSearchPath
// directories, and a missing file is not an error.
func Load(path string, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.envFiles) > 0 {
		if err := godotenv.Load(l.envFiles...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		for _, dir := range l.dirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks algorithms, sizes and store settings.
func (c *Config) Validate() error {
	var errs []error
	if !strata.IsValidHashAlgo(strata.HashAlgo(c.Hash.Algorithm)) {
		errs = append(errs, fmt.Errorf("%w: %s %q: %w", ErrInvalid, KeyHashAlgorithm, c.Hash.Algorithm, strata.ErrInvalidAlgorithm))
	}
	algo := strata.EncryptAlgo(c.Encrypt.Algorithm)
	if !strata.IsValidEncryptAlgo(algo) {
		errs = append(errs, fmt.Errorf("%w: %s %q: %w", ErrInvalid, KeyEncryptAlgorithm, c.Encrypt.Algorithm, strata.ErrInvalidAlgorithm))
	} else if c.Encrypt.SecretKey != "" {
		if key := c.key(); len(key) != strata.KeySize(algo) {
			errs = append(errs, fmt.Errorf("%w: %s is %d bytes, %s needs %d: %w",
				ErrInvalid, KeyEncryptSecret, len(key), algo, strata.KeySize(algo), strata.ErrInvalidKey))
		}
	}
	if c.Encrypt.IVSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s %d: %w", ErrInvalid, KeyEncryptIVSize, c.Encrypt.IVSize, strata.ErrInvalidIVSize))
	}
	if c.Localize.FallbackLocale == "" {
		errs = append(errs, fmt.Errorf("%w: %s is empty", ErrInvalid, KeyFallbackLocale))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: %s is required for %s", ErrInvalid, KeyStoreDSN, DriverSQLite))
		}
	case DriverMongo:
		if c.Store.DSN == "" || c.Store.Database == "" {
			errs = append(errs, fmt.Errorf("%w: %s and %s are required for %s", ErrInvalid, KeyStoreDSN, KeyStoreDatabase, DriverMongo))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %s %q", ErrInvalid, KeyStoreDriver, c.Store.Driver))
	}
	if _, err := c.Codec(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) key() []byte {
	if key, err := base64.StdEncoding.DecodeString(c.Encrypt.SecretKey); err == nil {
		return key
	}
	return []byte(c.Encrypt.SecretKey)
}

// Key returns the decoded encryption key.
func (c *Config) Key() ([]byte, error) {
	if c.Encrypt.SecretKey == "" {
		return nil, fmt.Errorf("%s is not set: %w", KeyEncryptSecret, strata.ErrInvalidKey)
	}
	return c.key(), nil
}

// NewHash builds the configured Hash.
func (c *Config) NewHash() (*strata.Hash, error) {
	return strata.NewHash(strata.WithHashAlgorithm(strata.HashAlgo(c.Hash.Algorithm)))
}

// NewEncrypt builds the configured Encrypt.
func (c *Config) NewEncrypt() (*strata.Encrypt, error) {
	key, err := c.Key()
	if err != nil {
		return nil, err
	}
	opts := []strata.EncryptOption{strata.WithEncryptAlgorithm(strata.EncryptAlgo(c.Encrypt.Algorithm))}
	if c.gcm() {
		opts = append(opts, strata.WithIVSize(c.Encrypt.IVSize))
	}
	return strata.NewEncrypt(key, opts...)
}

// gcm reports whether the configured cipher takes a configurable IV size.
func (c *Config) gcm() bool {
	switch strata.EncryptAlgo(c.Encrypt.Algorithm) {
	case strata.EncryptAES128GCM, strata.EncryptAES192GCM, strata.EncryptAES256GCM:
		return true
	}
	return false
}

// NewLocalize builds a Localize with the configured fallback locale.
func (c *Config) NewLocalize() *strata.Localize {
	return strata.NewLocalize(strata.WithFallbackLocale(c.Localize.FallbackLocale))
}

// BindOptions returns the options that apply this configuration to Bind.
// A non-default IV size is only applied for GCM ciphers, so tags selecting
// other ciphers must not be mixed with it.
func (c *Config) BindOptions() []strata.BindOption {
	var opts []strata.BindOption
	if c.gcm() && c.Encrypt.IVSize != strata.DefaultIVSize {
		opts = append(opts, strata.WithEncryptOptions(strata.WithIVSize(c.Encrypt.IVSize)))
	}
	if c.Encrypt.SecretKey != "" {
		opts = append(opts, strata.WithKey(strata.EncryptAlgo(c.Encrypt.Algorithm), c.key()))
	}
	return opts
}

// Codec returns the configured codec.
func (c *Config) Codec() (strata.Codec, error) {
	switch c.Store.Codec {
	case "json":
		return json.New(), nil
	case "yaml":
		return yaml.New(), nil
	case "msgpack":
		return msgpack.New(), nil
	case "bson":
		return bson.New(), nil
	}
	return nil, fmt.Errorf("%w: %s %q", ErrInvalid, KeyStoreCodec, c.Store.Codec)
}

// OpenStore opens the configured document store.
func (c *Config) OpenStore(ctx context.Context) (strata.Store, error) {
	switch c.Store.Driver {
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.Open(ctx, c.Store.DSN)
	case DriverMongo:
		return mongo.Open(ctx, c.Store.DSN, c.Store.Database)
	}
	return nil, fmt.Errorf("%w: %s %q", ErrInvalid, KeyStoreDriver, c.Store.Driver)
}
