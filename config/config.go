// Package config parses and validates the daemon's runtime configuration,
// binding pflag-defined flags through viper so that every option can also
// come from an environment variable or config file.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LookupCache selects the DNLC confirmation policy.
type LookupCache string

const (
	LookupCacheAll      LookupCache = "all"
	LookupCacheNone     LookupCache = "none"
	LookupCachePos      LookupCache = "pos"
	LookupCachePositive LookupCache = "positive"
)

// Consistency selects attribute-revalidation aggressiveness.
type Consistency string

const (
	ConsistencySoloWriter  Consistency = "solowriter"
	ConsistencyStandardNFS Consistency = "standardnfs"
	ConsistencyAzureMPA    Consistency = "azurempa"
)

var (
	accountPattern   = regexp.MustCompile(`^[a-z0-9]{3,24}$`)
	containerPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)
	cloudSuffixPattern = regexp.MustCompile(`^[a-z0-9.]+\.[a-z]{2,}$`)
)

// Config is the fully parsed and validated daemon configuration.
type Config struct {
	Server     string `mapstructure:"server"`
	Export     string `mapstructure:"export"`
	MountPoint string `mapstructure:"mountpoint"`

	Nconnect    int    `mapstructure:"nconnect"`
	ReadaheadKB uint64 `mapstructure:"readahead_kb"`
	Actimeo     int    `mapstructure:"actimeo"`

	LookupCache LookupCache `mapstructure:"lookupcache"`
	Consistency Consistency `mapstructure:"consistency"`

	CacheDir string `mapstructure:"cachedir"`

	Account     string `mapstructure:"account"`
	Container   string `mapstructure:"container"`
	CloudSuffix string `mapstructure:"cloud_suffix"`

	LogLevel string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// BindFlags registers every config option on flags, for cmd/aznfsc to
// attach to its root command before calling Load.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("server", "", "NFSv3 server address (host or host:port)")
	flags.String("export", "/", "NFSv3 export path on the server")
	flags.String("mountpoint", "", "local directory to mount the export on")

	flags.Int("nconnect", 4, "number of parallel RPC connections to the server")
	flags.Uint64("readahead-kb", 15360, "per-file readahead window size, in KiB")
	flags.Int("actimeo", 60, "attribute and confirmed-directory cache timeout, in seconds")

	flags.String("lookupcache", string(LookupCachePositive), "DNLC policy: all, none, pos, positive")
	flags.String("consistency", string(ConsistencyStandardNFS), "attribute revalidation aggressiveness: solowriter, standardnfs, azurempa")

	flags.String("cachedir", "", "optional disk cache directory, opaque to the core client")

	flags.String("account", "", "storage account name")
	flags.String("container", "", "storage container name")
	flags.String("cloud-suffix", "", "cloud endpoint suffix")

	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("metrics-addr", "", "address to serve Prometheus metrics on, empty disables")
}

// Load reads bound flags (and any matching environment variables, prefixed
// AZNFSC_) into a validated Config.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("aznfsc")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	cfg := &Config{
		Server:      v.GetString("server"),
		Export:      v.GetString("export"),
		MountPoint:  v.GetString("mountpoint"),
		Nconnect:    v.GetInt("nconnect"),
		ReadaheadKB: v.GetUint64("readahead-kb"),
		Actimeo:     v.GetInt("actimeo"),
		LookupCache: LookupCache(v.GetString("lookupcache")),
		Consistency: Consistency(v.GetString("consistency")),
		CacheDir:    v.GetString("cachedir"),
		Account:     v.GetString("account"),
		Container:   v.GetString("container"),
		CloudSuffix: v.GetString("cloud-suffix"),
		LogLevel:    v.GetString("log-level"),
		MetricsAddr: v.GetString("metrics-addr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural and pattern constraints not expressible on
// the flag definitions themselves.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("config: server is required")
	}
	if c.MountPoint == "" {
		return fmt.Errorf("config: mountpoint is required")
	}
	if c.Nconnect < 1 {
		return fmt.Errorf("config: nconnect must be >= 1, got %d", c.Nconnect)
	}
	switch c.LookupCache {
	case LookupCacheAll, LookupCacheNone, LookupCachePos, LookupCachePositive:
	default:
		return fmt.Errorf("config: invalid lookupcache %q", c.LookupCache)
	}
	switch c.Consistency {
	case ConsistencySoloWriter, ConsistencyStandardNFS, ConsistencyAzureMPA:
	default:
		return fmt.Errorf("config: invalid consistency %q", c.Consistency)
	}
	if c.Account != "" && !accountPattern.MatchString(c.Account) {
		return fmt.Errorf("config: account %q must be lowercase alphanumeric, 3-24 chars", c.Account)
	}
	if c.Container != "" && !containerPattern.MatchString(c.Container) {
		return fmt.Errorf("config: container %q must be lowercase alphanumeric with dashes, 3-63 chars", c.Container)
	}
	if c.CloudSuffix != "" && !cloudSuffixPattern.MatchString(c.CloudSuffix) {
		return fmt.Errorf("config: cloud_suffix %q does not look like a DNS suffix", c.CloudSuffix)
	}
	return nil
}
