package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// Prefixes is the ordered list of file system roots searched during
	// resolution. Earlier prefixes shadow later ones.
	Prefixes []string `json:"prefixes,omitempty"`

	// CentroidSNR is the signal-to-noise ratio used as the noise floor for
	// peak picking on profile spectra. The default of 1.0 matches the
	// upstream peak picker; it is a chosen constant, not a derived one.
	CentroidSNR float64 `json:"centroid_snr,omitempty"`

	// MobilityMergeTolerancePPM is the m/z window, in parts per million,
	// within which mobility-resolved traces are collapsed into one peak.
	// The 20 ppm default is a chosen TOF-typical constant.
	MobilityMergeTolerancePPM float64 `json:"mobility_merge_tolerance_ppm,omitempty"`

	// ThermoHelper is the external converter executable the vendor-RAW
	// backend delegates to. Resolved through PATH unless absolute.
	ThermoHelper string `json:"thermo_helper,omitempty"`

	// CacheDisabled turns off the located-file cache.
	CacheDisabled bool `json:"cache_disabled,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are reported at startup.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// HTTPBind and HTTPPort configure the PROXI HTTP endpoint.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Prefixes:                  []string{"."},
		CentroidSNR:               1.0,
		MobilityMergeTolerancePPM: 20.0,
		ThermoHelper:              "thermorawread",
		HTTPBind:                  "127.0.0.1",
		HTTPPort:                  8338,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.mzusi.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; string lists replace rather
// than append, because prefix order is a precedence policy.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Prefixes = cleanStringSlice(overlay.Prefixes)
	if len(result.Prefixes) == 0 {
		result.Prefixes = cleanStringSlice(base.Prefixes)
	}

	result.CentroidSNR = overlay.CentroidSNR
	if result.CentroidSNR == 0 {
		result.CentroidSNR = base.CentroidSNR
	}

	result.MobilityMergeTolerancePPM = overlay.MobilityMergeTolerancePPM
	if result.MobilityMergeTolerancePPM == 0 {
		result.MobilityMergeTolerancePPM = base.MobilityMergeTolerancePPM
	}

	result.ThermoHelper = overlay.ThermoHelper
	if result.ThermoHelper == "" {
		result.ThermoHelper = base.ThermoHelper
	}

	result.HTTPBind = overlay.HTTPBind
	if result.HTTPBind == "" {
		result.HTTPBind = base.HTTPBind
	}

	result.HTTPPort = overlay.HTTPPort
	if result.HTTPPort == 0 {
		result.HTTPPort = base.HTTPPort
	}

	result.CacheDisabled = base.CacheDisabled || overlay.CacheDisabled

	result.DisabledTools = cleanStringSlice(append(append([]string{}, base.DisabledTools...), overlay.DisabledTools...))

	return result
}

// cleanStringSlice trims whitespace and removes empties and duplicates,
// preserving order.
func cleanStringSlice(in []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
