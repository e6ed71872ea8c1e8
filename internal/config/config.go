// Package config provides configuration management for dojo.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DefaultWorkerPort is the default HTTP port for the admin API.
	DefaultWorkerPort = 37780

	// DefaultFallbackSlug is the taxonomy node assigned when nothing matches.
	DefaultFallbackSlug = "fundamentals"
)

// DefaultSeedQueries are searched when no coverage gap yields a query.
var DefaultSeedQueries = []string{
	"bjj fundamentals", "jiu jitsu guard retention", "bjj escapes tutorial",
}

// settingKeys lists every key read from settings.json. The same names are
// honored as environment variables, which take precedence.
var settingKeys = []string{
	"DOJO_WORKER_PORT", "DOJO_DB_DSN", "DOJO_DB_PATH", "DOJO_DB_MAX_CONNS", "DOJO_LOG_LEVEL",
	"DOJO_CATALOG_API_KEY", "DOJO_CATALOG_BASE_URL", "DOJO_CATALOG_CALLS_PER_SECOND",
	"DOJO_ACQUISITION_PAGE_SIZE", "DOJO_ACQUISITION_MIN_DURATION", "DOJO_ACQUISITION_QUERY_DELAY",
	"DOJO_ACQUISITION_SEED_QUERIES", "DOJO_ACQUISITION_QUERY_TEMPLATES",
	"DOJO_TAG_NAME_THRESHOLD", "DOJO_TAG_CONTAINS_WEIGHT", "DOJO_TAG_CONTAINED_BY_WEIGHT",
	"DOJO_TAG_OVERLAP_WEIGHT", "DOJO_TAG_MAX_NAME_MATCHES", "DOJO_TAG_FALLBACK_SLUG",
	"DOJO_TAXONOMY_CACHE_TTL", "DOJO_TAXONOMY_SEED_PATH", "DOJO_TAXONOMY_WATCH",
	"DOJO_COVERAGE_TARGET_PER_TECHNIQUE", "DOJO_COVERAGE_LIBRARY_TARGET", "DOJO_COVERAGE_TOP_N",
	"DOJO_PROFILE_WINDOW", "DOJO_PROFILE_MIN_SAMPLES", "DOJO_PROFILE_LENGTH_FLOOR",
	"DOJO_PROFILE_LENGTH_CEILING", "DOJO_PROFILE_ACTIVE_WINDOW", "DOJO_PROFILE_USER_DELAY",
	"DOJO_CREDIBILITY_DELAY",
	"DOJO_SCHEDULE_ACQUIRE", "DOJO_SCHEDULE_COVERAGE", "DOJO_SCHEDULE_TAG",
	"DOJO_SCHEDULE_PROFILES", "DOJO_SCHEDULE_CREDIBILITY", "DOJO_LOCK_DIR",
}

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int    `json:"worker_port"`
	LogLevel   string `json:"log_level"`

	// Database settings (DSN selects PostgreSQL, otherwise SQLite at DBPath)
	DBDSN    string `json:"db_dsn"`
	DBPath   string `json:"db_path"`
	MaxConns int    `json:"max_conns"`

	// Catalog settings
	CatalogAPIKey         string  `json:"-"`
	CatalogBaseURL        string  `json:"catalog_base_url"`
	CatalogCallsPerSecond float64 `json:"catalog_calls_per_second"`

	// Acquisition settings
	AcquisitionPageSize       int           `json:"acquisition_page_size"`
	AcquisitionMinDuration    time.Duration `json:"acquisition_min_duration"`
	AcquisitionQueryDelay     time.Duration `json:"acquisition_query_delay"`
	AcquisitionSeedQueries    []string      `json:"acquisition_seed_queries"`
	AcquisitionQueryTemplates []string      `json:"acquisition_query_templates"`

	// Tagging settings
	TagNameThreshold     float64 `json:"tag_name_threshold"`
	TagContainsWeight    float64 `json:"tag_contains_weight"`
	TagContainedByWeight float64 `json:"tag_contained_by_weight"`
	TagOverlapWeight     float64 `json:"tag_overlap_weight"`
	TagMaxNameMatches    int     `json:"tag_max_name_matches"`
	TagFallbackSlug      string  `json:"tag_fallback_slug"`

	// Taxonomy settings
	TaxonomyCacheTTL time.Duration `json:"taxonomy_cache_ttl"`
	TaxonomySeedPath string        `json:"taxonomy_seed_path"` // Empty uses the embedded seed
	TaxonomyWatch    bool          `json:"taxonomy_watch"`

	// Coverage settings
	CoverageTargetPerTechnique int `json:"coverage_target_per_technique"`
	CoverageLibraryTarget      int `json:"coverage_library_target"`
	CoverageTopN               int `json:"coverage_top_n"`

	// Profile settings
	ProfileWindow        int           `json:"profile_window"`
	ProfileMinSamples    int           `json:"profile_min_samples"`
	ProfileLengthFloor   int           `json:"profile_length_floor"`
	ProfileLengthCeiling int           `json:"profile_length_ceiling"`
	ProfileActiveWindow  time.Duration `json:"profile_active_window"`
	ProfileUserDelay     time.Duration `json:"profile_user_delay"`

	// Credibility settings
	CredibilityDelay time.Duration `json:"credibility_delay"`

	// Scheduler settings (0 = on demand only)
	ScheduleAcquire     time.Duration `json:"schedule_acquire"`
	ScheduleCoverage    time.Duration `json:"schedule_coverage"`
	ScheduleTag         time.Duration `json:"schedule_tag"`
	ScheduleProfiles    time.Duration `json:"schedule_profiles"`
	ScheduleCredibility time.Duration `json:"schedule_credibility"`
	LockDir             string        `json:"lock_dir"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.dojo, or DOJO_DATA_DIR).
func DataDir() string {
	if dir := os.Getenv("DOJO_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dojo")
}

// DBPath returns the default SQLite database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "dojo.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `{
  "DOJO_WORKER_PORT": 37780,
  "DOJO_CATALOG_CALLS_PER_SECOND": 5,
  "DOJO_COVERAGE_TARGET_PER_TECHNIQUE": 100,
  "DOJO_COVERAGE_LIBRARY_TARGET": 3000,
  "DOJO_SCHEDULE_ACQUIRE": "24h",
  "DOJO_SCHEDULE_PROFILES": "24h"
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:                 DefaultWorkerPort,
		LogLevel:                   "info",
		DBPath:                     DBPath(),
		MaxConns:                   10,
		CatalogCallsPerSecond:      5,
		AcquisitionPageSize:        25,
		AcquisitionMinDuration:     70 * time.Second,
		AcquisitionQueryDelay:      time.Second,
		AcquisitionSeedQueries:     DefaultSeedQueries,
		AcquisitionQueryTemplates:  []string{"%s bjj", "%s tutorial"},
		TagNameThreshold:           0.6,
		TagContainsWeight:          0.9,
		TagContainedByWeight:       0.85,
		TagOverlapWeight:           0.8,
		TagMaxNameMatches:          3,
		TagFallbackSlug:            DefaultFallbackSlug,
		TaxonomyCacheTTL:           5 * time.Minute,
		CoverageTargetPerTechnique: 100,
		CoverageLibraryTarget:      3000,
		CoverageTopN:               10,
		ProfileWindow:              100,
		ProfileMinSamples:          5,
		ProfileLengthFloor:         5,
		ProfileLengthCeiling:       30,
		ProfileActiveWindow:        30 * 24 * time.Hour,
		ProfileUserDelay:           500 * time.Millisecond,
		CredibilityDelay:           250 * time.Millisecond,
		ScheduleAcquire:            24 * time.Hour,
		ScheduleCoverage:           6 * time.Hour,
		ScheduleTag:                time.Hour,
		ScheduleProfiles:           24 * time.Hour,
		ScheduleCredibility:        7 * 24 * time.Hour,
		LockDir:                    filepath.Join(DataDir(), "locks"),
	}
}

// Load loads configuration from the settings file, merging with defaults
// and environment overrides.
func Load() (*Config, error) {
	return LoadFile(SettingsPath())
}

// LoadFile loads configuration from path. A missing file yields defaults;
// environment variables override file values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	settings := map[string]interface{}{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &settings); err != nil {
			settings = map[string]interface{}{} // Defaults on parse error
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	for _, key := range settingKeys {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			settings[key] = v
		}
	}

	s := settingsMap(settings)

	if v, ok := s.int("DOJO_WORKER_PORT"); ok && v > 0 {
		cfg.WorkerPort = v
	}
	if v, ok := s.string("DOJO_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := s.string("DOJO_DB_DSN"); ok {
		cfg.DBDSN = v
	}
	if v, ok := s.string("DOJO_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := s.int("DOJO_DB_MAX_CONNS"); ok && v > 0 {
		cfg.MaxConns = v
	}

	// Catalog settings
	if v, ok := s.string("DOJO_CATALOG_API_KEY"); ok {
		cfg.CatalogAPIKey = v
	}
	if v, ok := s.string("DOJO_CATALOG_BASE_URL"); ok {
		cfg.CatalogBaseURL = v
	}
	if v, ok := s.float("DOJO_CATALOG_CALLS_PER_SECOND"); ok && v >= 0 {
		cfg.CatalogCallsPerSecond = v
	}

	// Acquisition settings
	if v, ok := s.int("DOJO_ACQUISITION_PAGE_SIZE"); ok && v > 0 && v <= 50 {
		cfg.AcquisitionPageSize = v
	}
	if v, ok := s.duration("DOJO_ACQUISITION_MIN_DURATION"); ok && v > 0 {
		cfg.AcquisitionMinDuration = v
	}
	if v, ok := s.duration("DOJO_ACQUISITION_QUERY_DELAY"); ok && v >= 0 {
		cfg.AcquisitionQueryDelay = v
	}
	if v, ok := s.list("DOJO_ACQUISITION_SEED_QUERIES"); ok {
		cfg.AcquisitionSeedQueries = v
	}
	if v, ok := s.list("DOJO_ACQUISITION_QUERY_TEMPLATES"); ok {
		cfg.AcquisitionQueryTemplates = v
	}

	// Tagging settings
	if v, ok := s.float("DOJO_TAG_NAME_THRESHOLD"); ok && v >= 0 && v <= 1 {
		cfg.TagNameThreshold = v
	}
	if v, ok := s.float("DOJO_TAG_CONTAINS_WEIGHT"); ok && v >= 0 && v <= 1 {
		cfg.TagContainsWeight = v
	}
	if v, ok := s.float("DOJO_TAG_CONTAINED_BY_WEIGHT"); ok && v >= 0 && v <= 1 {
		cfg.TagContainedByWeight = v
	}
	if v, ok := s.float("DOJO_TAG_OVERLAP_WEIGHT"); ok && v >= 0 && v <= 1 {
		cfg.TagOverlapWeight = v
	}
	if v, ok := s.int("DOJO_TAG_MAX_NAME_MATCHES"); ok && v > 0 {
		cfg.TagMaxNameMatches = v
	}
	if v, ok := s.string("DOJO_TAG_FALLBACK_SLUG"); ok {
		cfg.TagFallbackSlug = v
	}

	// Taxonomy settings
	if v, ok := s.duration("DOJO_TAXONOMY_CACHE_TTL"); ok && v > 0 {
		cfg.TaxonomyCacheTTL = v
	}
	if v, ok := s.string("DOJO_TAXONOMY_SEED_PATH"); ok {
		cfg.TaxonomySeedPath = v
	}
	if v, ok := s.bool("DOJO_TAXONOMY_WATCH"); ok {
		cfg.TaxonomyWatch = v
	}

	// Coverage settings
	if v, ok := s.int("DOJO_COVERAGE_TARGET_PER_TECHNIQUE"); ok && v > 0 {
		cfg.CoverageTargetPerTechnique = v
	}
	if v, ok := s.int("DOJO_COVERAGE_LIBRARY_TARGET"); ok && v > 0 {
		cfg.CoverageLibraryTarget = v
	}
	if v, ok := s.int("DOJO_COVERAGE_TOP_N"); ok && v > 0 {
		cfg.CoverageTopN = v
	}

	// Profile settings
	if v, ok := s.int("DOJO_PROFILE_WINDOW"); ok && v > 0 {
		cfg.ProfileWindow = v
	}
	if v, ok := s.int("DOJO_PROFILE_MIN_SAMPLES"); ok && v > 0 {
		cfg.ProfileMinSamples = v
	}
	if v, ok := s.int("DOJO_PROFILE_LENGTH_FLOOR"); ok && v > 0 {
		cfg.ProfileLengthFloor = v
	}
	if v, ok := s.int("DOJO_PROFILE_LENGTH_CEILING"); ok && v > 0 {
		cfg.ProfileLengthCeiling = v
	}
	if v, ok := s.duration("DOJO_PROFILE_ACTIVE_WINDOW"); ok && v > 0 {
		cfg.ProfileActiveWindow = v
	}
	if v, ok := s.duration("DOJO_PROFILE_USER_DELAY"); ok && v >= 0 {
		cfg.ProfileUserDelay = v
	}
	if v, ok := s.duration("DOJO_CREDIBILITY_DELAY"); ok && v >= 0 {
		cfg.CredibilityDelay = v
	}

	// Scheduler settings
	if v, ok := s.duration("DOJO_SCHEDULE_ACQUIRE"); ok && v >= 0 {
		cfg.ScheduleAcquire = v
	}
	if v, ok := s.duration("DOJO_SCHEDULE_COVERAGE"); ok && v >= 0 {
		cfg.ScheduleCoverage = v
	}
	if v, ok := s.duration("DOJO_SCHEDULE_TAG"); ok && v >= 0 {
		cfg.ScheduleTag = v
	}
	if v, ok := s.duration("DOJO_SCHEDULE_PROFILES"); ok && v >= 0 {
		cfg.ScheduleProfiles = v
	}
	if v, ok := s.duration("DOJO_SCHEDULE_CREDIBILITY"); ok && v >= 0 {
		cfg.ScheduleCredibility = v
	}
	if v, ok := s.string("DOJO_LOCK_DIR"); ok {
		cfg.LockDir = v
	}

	return cfg, nil
}

// settingsMap reads typed values from decoded JSON or raw environment strings.
type settingsMap map[string]interface{}

func (s settingsMap) string(key string) (string, bool) {
	v, ok := s[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (s settingsMap) float(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func (s settingsMap) int(key string) (int, bool) {
	f, ok := s.float(key)
	return int(f), ok
}

func (s settingsMap) bool(key string) (bool, bool) {
	switch v := s[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// duration accepts Go duration strings ("90s", "24h") or a number of seconds.
func (s settingsMap) duration(key string) (time.Duration, bool) {
	switch v := s[key].(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		return d, err == nil
	}
	return 0, false
}

// list accepts a JSON array of strings or a comma-separated string.
func (s settingsMap) list(key string) ([]string, bool) {
	switch v := s[key].(type) {
	case string:
		out := splitTrim(v)
		return out, len(out) > 0
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
				out = append(out, strings.TrimSpace(str))
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

// splitTrim splits a comma-separated string and trims whitespace.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// GetWorkerPort returns the worker port from environment or config.
func GetWorkerPort() int {
	if port := os.Getenv("DOJO_WORKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			return p
		}
	}
	return Get().WorkerPort
}
