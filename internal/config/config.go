// Package config loads and validates mount-level configuration: which
// InodeCatalog and FileContentStore variants to use, durability and case
// sensitivity policy, and cache locations. It follows the teacher's
// yaml.v3 + mergo pattern for defaults-merging and XDG directory
// conventions.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/imdario/mergo"
	yaml "gopkg.in/yaml.v3"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/logging"
)

// CatalogKind selects an InodeCatalog backend (§4.1).
type CatalogKind string

const (
	CatalogShardedFile CatalogKind = "sharded-file"
	CatalogKeyValue    CatalogKind = "kv"
	CatalogMemory      CatalogKind = "memory"
	CatalogBuffered    CatalogKind = "buffered-kv"
)

func CatalogKinds() []string {
	return []string{string(CatalogShardedFile), string(CatalogKeyValue), string(CatalogMemory), string(CatalogBuffered)}
}

// ContentStoreKind selects a FileContentStore backend (§4.2).
type ContentStoreKind string

const (
	ContentStoreShardedFile ContentStoreKind = "sharded-file"
	ContentStoreKeyValue    ContentStoreKind = "kv"
	ContentStoreEphemeral   ContentStoreKind = "ephemeral"
)

func ContentStoreKinds() []string {
	return []string{string(ContentStoreShardedFile), string(ContentStoreKeyValue), string(ContentStoreEphemeral)}
}

// Config is the full set of knobs a Mount is constructed from.
type Config struct {
	// MountPath is the root directory the overlay lives under on disk,
	// i.e. <MountPath>/local per §6's on-disk layout.
	MountPath string `yaml:"mountPath"`

	// LogLevel is parsed with logging.ParseLevel.
	LogLevel string `yaml:"log"`

	// Catalog selects the InodeCatalog variant (§4.1).
	Catalog CatalogKind `yaml:"catalog"`

	// ContentStore selects the FileContentStore variant (§4.2).
	ContentStore ContentStoreKind `yaml:"contentStore"`

	// CaseSensitive controls DirContents name comparison (§3).
	CaseSensitive bool `yaml:"caseSensitive"`

	// SyncWrites is read from and written to the config file only; no
	// catalog consults it. The sharded-file catalog fdatasyncs the root
	// directory record and no other.
	SyncWrites bool `yaml:"syncWrites"`

	// BlobCacheBytes is the BlobCache byte budget (§4.3).
	BlobCacheBytes int64 `yaml:"blobCacheBytes"`

	// BlobCacheLRUWindowSeconds is the "recently accessed" retention
	// window that overrides the byte budget (§4.3).
	BlobCacheLRUWindowSeconds int `yaml:"blobCacheLRUWindowSeconds"`

	// CheckoutWorkers is validated to be positive but not consulted by
	// CheckoutEngine or DiffEngine, whose per-directory fan-out is not
	// bounded by it.
	CheckoutWorkers int `yaml:"checkoutWorkers"`

	// BufferedCatalogQueueDepth is read from and written to the config
	// file only; NewBufferedCatalog takes its byte budget as an argument
	// and nothing derives that argument from this field.
	BufferedCatalogQueueDepth int `yaml:"bufferedCatalogQueueDepth"`
}

// DefaultConfigPath returns the default config location for vfsoverlay,
// following XDG_CONFIG_HOME conventions the way the teacher's
// DefaultConfigPath does.
func DefaultConfigPath() string {
	confDir, err := os.UserConfigDir()
	if err != nil {
		logging.Error().Err(err).Msg("could not determine configuration directory")
	}
	return filepath.Join(confDir, "vfsoverlay/config.yml")
}

func createDefaultConfig() Config {
	xdgCacheDir, _ := os.UserCacheDir()
	return Config{
		MountPath:                 filepath.Join(xdgCacheDir, "vfsoverlay"),
		LogLevel:                  "info",
		Catalog:                   CatalogShardedFile,
		ContentStore:              ContentStoreShardedFile,
		CaseSensitive:             true,
		SyncWrites:                false,
		BlobCacheBytes:            256 << 20, // 256 MiB
		BlobCacheLRUWindowSeconds: 30,
		CheckoutWorkers:           8,
		BufferedCatalogQueueDepth: 4096,
	}
}

func readConfigFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func parseConfig(data []byte) (*Config, error) {
	config := &Config{}
	err := yaml.Unmarshal(data, config)
	return config, err
}

func mergeWithDefaults(config *Config, defaults Config) error {
	return mergo.Merge(config, defaults)
}

func validateConfig(config *Config) error {
	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		logging.Warn().Str("logLevel", config.LogLevel).Msg("invalid log level, using default")
		config.LogLevel = "info"
	}

	if !contains(CatalogKinds(), string(config.Catalog)) {
		logging.Warn().Str("catalog", string(config.Catalog)).Msg("unknown catalog kind, using default")
		config.Catalog = CatalogShardedFile
	}

	if !contains(ContentStoreKinds(), string(config.ContentStore)) {
		logging.Warn().Str("contentStore", string(config.ContentStore)).Msg("unknown content store kind, using default")
		config.ContentStore = ContentStoreShardedFile
	}

	if config.BlobCacheBytes <= 0 {
		logging.Warn().Int64("blobCacheBytes", config.BlobCacheBytes).Msg("blob cache byte budget must be positive, using default")
		config.BlobCacheBytes = 256 << 20
	}

	if config.CheckoutWorkers <= 0 {
		logging.Warn().Int("checkoutWorkers", config.CheckoutWorkers).Msg("checkout worker count must be positive, using default")
		config.CheckoutWorkers = 8
	}

	if config.MountPath == "" {
		return vferrors.InvalidArgument("mountPath", "mount path must not be empty")
	}

	return nil
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

// LoadConfig is the primary way of loading vfsoverlay's mount configuration.
func LoadConfig(path string) *Config {
	defaults := createDefaultConfig()

	raw, err := readConfigFile(path)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("configuration file not found, using defaults")
		return &defaults
	}

	config, err := parseConfig(raw)
	if err != nil {
		logging.Error().Err(err).Str("path", path).Msg("could not parse configuration file, using defaults")
		return &defaults
	}

	if err = mergeWithDefaults(config, defaults); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("could not merge configuration with defaults")
		return &defaults
	}

	// mergo treats an explicit false as unset; re-apply the file's own
	// values so explicitly set fields win over the defaults.
	if err = yaml.Unmarshal(raw, config); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("could not parse configuration file, using defaults")
		return &defaults
	}

	if err = validateConfig(config); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("invalid configuration, using defaults")
		return &defaults
	}

	return config
}

// WriteConfig persists c as YAML at path, creating parent directories as
// needed, mirroring the teacher's Config.WriteConfig.
func (c Config) WriteConfig(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		logging.Error().Err(err).Str("path", path).Msg("could not marshal config")
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("could not create directory for config file")
		return err
	}

	if err = os.WriteFile(path, out, 0600); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("could not write config to disk")
		return err
	}

	logging.Debug().Str("path", path).Msg("configuration written to file")
	return nil
}
