package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kebairia/redis-backup/internal/backup"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// EnvPrefix is prepended to every environment override, e.g. RDB_BACKUP_REDIS_PORT.
const EnvPrefix = "RDB_BACKUP"

// Config represents the effective settings of one backup run.
type Config struct {
	Backup    BackupConfig    `mapstructure:"backup"    yaml:"backup"`
	Redis     RedisConfig     `mapstructure:"redis"     yaml:"redis"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"  yaml:"snapshot"`
	Vault     VaultConfig     `mapstructure:"vault"     yaml:"vault"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// BackupConfig controls where and how backup files are written.
type BackupConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Filename  string `mapstructure:"filename"  yaml:"filename"` // strftime pattern
	Compress  bool   `mapstructure:"compress"  yaml:"compress"`
	LockFile  string `mapstructure:"lock_file" yaml:"lock_file,omitempty"`
}

// RedisConfig holds connection settings for the instance being backed up.
type RedisConfig struct {
	Host        string        `mapstructure:"host"         yaml:"host"`
	Port        int           `mapstructure:"port"         yaml:"port"`
	Username    string        `mapstructure:"username"     yaml:"username,omitempty"`
	Password    string        `mapstructure:"password"     yaml:"password,omitempty"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// RetentionConfig specifies how many backups to keep.
type RetentionConfig struct {
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// SnapshotConfig controls the BGSAVE wait loop.
type SnapshotConfig struct {
	BgsaveTimeout int           `mapstructure:"bgsave_timeout" yaml:"bgsave_timeout"` // seconds
	PollInterval  time.Duration `mapstructure:"poll_interval"  yaml:"poll_interval"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
// Vault is only consulted when both Address and SecretPath are set.
type VaultConfig struct {
	Address     string `mapstructure:"address"      yaml:"address"`
	Token       string `mapstructure:"token"        yaml:"token,omitempty"`
	RoleID      string `mapstructure:"role_id"      yaml:"role_id,omitempty"`
	ApproleName string `mapstructure:"approle_name" yaml:"approle_name,omitempty"`
	SecretPath  string `mapstructure:"secret_path"  yaml:"secret_path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file"  yaml:"file,omitempty"`
}

// MetricsConfig configures the node_exporter textfile output.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"backup_dir":         "backup.directory",
	"backup_filename":    "backup.filename",
	"compress":           "backup.compress",
	"lock_file":          "backup.lock_file",
	"redis_host":         "redis.host",
	"redis_port":         "redis.port",
	"redis_username":     "redis.username",
	"redis_password":     "redis.password",
	"redis_dial_timeout": "redis.dial_timeout",
	"max_backups":        "retention.max_backups",
	"bgsave_timeout":     "snapshot.bgsave_timeout",
	"poll_interval":      "snapshot.poll_interval",
	"vault_address":      "vault.address",
	"vault_token":        "vault.token",
	"vault_role_id":      "vault.role_id",
	"vault_approle_name": "vault.approle_name",
	"vault_secret_path":  "vault.secret_path",
	"log_level":          "logging.level",
	"log_file":           "logging.file",
	"metrics_textfile":   "metrics.textfile",
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Backup: BackupConfig{
			Directory: "./backups",
			Filename:  "redis_dump_%Y-%m-%d_%H%M%S",
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			DialTimeout: 5 * time.Second,
		},
		Retention: RetentionConfig{MaxBackups: 10},
		Snapshot: SnapshotConfig{
			BgsaveTimeout: 60,
			PollInterval:  time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// RegisterFlags declares every configuration flag on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("backup_dir", d.Backup.Directory, "backup directory")
	fs.String("backup_filename", d.Backup.Filename, "strftime pattern of the backup file name")
	fs.Bool("compress", d.Backup.Compress, "store backups zstd-compressed (.rdb.zst)")
	fs.String("lock_file", "", "lock file guarding concurrent runs (default <backup_dir>.lock)")
	fs.String("redis_host", d.Redis.Host, "redis host")
	fs.Int("redis_port", d.Redis.Port, "redis port")
	fs.String("redis_username", "", "redis ACL username")
	fs.String("redis_password", "", "redis password")
	fs.Duration("redis_dial_timeout", d.Redis.DialTimeout, "redis dial timeout")
	fs.Int("max_backups", d.Retention.MaxBackups, "maximum number of backups to keep")
	fs.Int("bgsave_timeout", d.Snapshot.BgsaveTimeout, "bgsave timeout in seconds")
	fs.Duration("poll_interval", d.Snapshot.PollInterval, "interval between LASTSAVE polls")
	fs.String("vault_address", "", "vault address")
	fs.String("vault_token", "", "vault token")
	fs.String("vault_role_id", "", "vault AppRole role_id")
	fs.String("vault_approle_name", "", "vault AppRole name")
	fs.String("vault_secret_path", "", "vault path holding the redis username/password")
	fs.String("log_level", d.Logging.Level, "log level (debug, info, warn, error)")
	fs.String("log_file", "", "also write logs to this rotated file")
	fs.String("metrics_textfile", "", "write prometheus metrics to this textfile")
}

// Load builds the configuration from defaults, the optional YAML file at path,
// RDB_BACKUP_* environment variables and the flags explicitly set in fs.
func (c *Config) Load(path string, fs *pflag.FlagSet) error {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("%w: bind flag %s: %v", ErrLoadConfig, name, err)
			}
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	if abs, err := filepath.Abs(c.Backup.Directory); err == nil {
		c.Backup.Directory = abs
	}
	if c.Backup.LockFile == "" {
		c.Backup.LockFile = filepath.Clean(c.Backup.Directory) + ".lock"
	}

	return c.Validate()
}

// Validate checks the invariants the backup run relies on.
func (c *Config) Validate() error {
	switch {
	case c.Backup.Directory == "":
		return fmt.Errorf("%w: backup directory is empty", ErrValidateConfig)
	case c.Backup.Filename == "":
		return fmt.Errorf("%w: backup filename pattern is empty", ErrValidateConfig)
	case strings.ContainsRune(c.Backup.Filename, filepath.Separator):
		return fmt.Errorf("%w: backup filename %q must not contain a path separator", ErrValidateConfig, c.Backup.Filename)
	case c.Redis.Port <= 0 || c.Redis.Port > 65535:
		return fmt.Errorf("%w: redis port %d out of range", ErrValidateConfig, c.Redis.Port)
	case c.Retention.MaxBackups < 1:
		return fmt.Errorf("%w: max_backups must be at least 1, got %d", ErrValidateConfig, c.Retention.MaxBackups)
	case c.Snapshot.BgsaveTimeout < 1:
		return fmt.Errorf("%w: bgsave_timeout must be at least 1 second, got %d", ErrValidateConfig, c.Snapshot.BgsaveTimeout)
	case c.Snapshot.PollInterval <= 0:
		return fmt.Errorf("%w: poll_interval must be positive", ErrValidateConfig)
	}
	if _, err := backup.ParseNameTemplate(c.Backup.Filename); err != nil {
		return fmt.Errorf("%w: %v", ErrValidateConfig, err)
	}
	return nil
}

// BgsaveTimeout returns the snapshot timeout as a duration.
func (c *Config) BgsaveTimeout() time.Duration {
	return time.Duration(c.Snapshot.BgsaveTimeout) * time.Second
}

// VaultEnabled reports whether redis credentials must be fetched from Vault.
func (c *Config) VaultEnabled() bool {
	return c.Vault.Address != "" && c.Vault.SecretPath != ""
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("backup.directory", d.Backup.Directory)
	v.SetDefault("backup.filename", d.Backup.Filename)
	v.SetDefault("backup.compress", d.Backup.Compress)
	v.SetDefault("backup.lock_file", "")
	v.SetDefault("redis.host", d.Redis.Host)
	v.SetDefault("redis.port", d.Redis.Port)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)
	v.SetDefault("retention.max_backups", d.Retention.MaxBackups)
	v.SetDefault("snapshot.bgsave_timeout", d.Snapshot.BgsaveTimeout)
	v.SetDefault("snapshot.poll_interval", d.Snapshot.PollInterval)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.role_id", "")
	v.SetDefault("vault.approle_name", "")
	v.SetDefault("vault.secret_path", "")
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", "")
	v.SetDefault("metrics.textfile", "")
}
