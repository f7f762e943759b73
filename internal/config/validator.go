package config

import (
	"fmt"
	"math"
	"strconv"

	"github.com/standardbeagle/strmatch/internal/cache"
	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/similarity"
)

// Validator validates configuration and sets defaults for zero values
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies defaults.
// Every problem found is reported, collected in a MultiError.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	v.setDefaults(cfg)

	var errs []error
	errs = append(errs, v.validateLinkingConfig(&cfg.Linking)...)
	errs = append(errs, v.validateMatrixConfig(&cfg.Matrix)...)
	errs = append(errs, v.validateCacheConfig(&cfg.Cache)...)
	return sterrors.NewMultiError(errs).ErrorOrNil()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func unitInterval(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

// validateLinkingConfig validates linking configuration
func (v *Validator) validateLinkingConfig(l *Linking) []error {
	var errs []error
	if !unitInterval(l.Threshold) {
		errs = append(errs, sterrors.NewConfigError("linking.threshold", formatFloat(l.Threshold),
			fmt.Errorf("must be in [0,1]")))
	}
	if !unitInterval(l.Warning) {
		errs = append(errs, sterrors.NewConfigError("linking.warning", formatFloat(l.Warning),
			fmt.Errorf("must be in [0,1]")))
	} else if l.Warning > 0 && l.Warning >= l.Threshold {
		errs = append(errs, sterrors.NewConfigError("linking.warning", formatFloat(l.Warning),
			fmt.Errorf("must be below the threshold %s", formatFloat(l.Threshold))))
	}
	return errs
}

// validateMatrixConfig validates matrix build configuration
func (v *Validator) validateMatrixConfig(m *Matrix) []error {
	var errs []error
	if m.Workers < 0 {
		errs = append(errs, sterrors.NewConfigError("matrix.workers", strconv.Itoa(m.Workers),
			fmt.Errorf("cannot be negative")))
	}
	if m.MaxIndex < 0 {
		errs = append(errs, sterrors.NewConfigError("matrix.max_index", strconv.Itoa(m.MaxIndex),
			fmt.Errorf("cannot be negative")))
	}
	if m.ProgressEvery < 0 {
		errs = append(errs, sterrors.NewConfigError("matrix.progress_every", strconv.Itoa(m.ProgressEvery),
			fmt.Errorf("cannot be negative")))
	}
	if m.ProgressIntervalMs < 0 {
		errs = append(errs, sterrors.NewConfigError("matrix.progress_interval", strconv.Itoa(m.ProgressIntervalMs),
			fmt.Errorf("cannot be negative")))
	}
	if _, err := similarity.ParseAlgorithm(m.Algorithm); err != nil {
		errs = append(errs, sterrors.NewConfigError("matrix.algorithm", m.Algorithm, err))
	}
	return errs
}

// validateCacheConfig validates cache configuration
func (v *Validator) validateCacheConfig(c *Cache) []error {
	if _, err := cache.ParseCompression(c.Compression); err != nil {
		return []error{sterrors.NewConfigError("cache.compression", c.Compression, err)}
	}
	return nil
}

// setDefaults fills zero values that mean "use the default"
func (v *Validator) setDefaults(cfg *Config) {
	if cfg.Matrix.Workers == 0 {
		cfg.Matrix.Workers = DefaultWorkers
	}
	if cfg.Matrix.Algorithm == "" {
		cfg.Matrix.Algorithm = DefaultAlgorithm
	}
	if cfg.Matrix.ProgressEvery == 0 {
		cfg.Matrix.ProgressEvery = DefaultProgressEvery
	}
	if cfg.Cache.Compression == "" {
		cfg.Cache.Compression = DefaultCompression
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
