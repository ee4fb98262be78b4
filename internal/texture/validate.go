package texture

import (
	"context"
	"fmt"

	"texture-compressor-go/internal/metadata"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// File is a discovered texture with its pixel dimensions.
type File struct {
	Path   string
	Width  int
	Height int
}

// ValidationResult is the outcome of checking one texture.
type ValidationResult struct {
	Path     string
	Valid    bool
	Advisory bool
	Message  string
	Width    int
	Height   int
	// Err is set when the image could not be decoded at all.
	Err error
}

// File returns the validated texture. Only meaningful when dimensions were read.
func (r ValidationResult) File() File {
	return File{Path: r.Path, Width: r.Width, Height: r.Height}
}

// Decoded reports whether the image dimensions could be read.
func (r ValidationResult) Decoded() bool {
	return r.Err == nil
}

// IsPowerOfTwo reports whether n is 2^k for some k >= 0.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// IsMultipleOfFour reports whether n is a positive multiple of 4.
func IsMultipleOfFour(n int) bool {
	return n > 0 && n%4 == 0
}

// CheckDimensions applies the block-compression rules to a width and height.
// BCn encodes 4x4 texel blocks, so both sides must be multiples of 4.
// Non power-of-two sizes are accepted with an advisory.
func CheckDimensions(width, height int) ValidationResult {
	res := ValidationResult{Width: width, Height: height}

	if !IsMultipleOfFour(width) || !IsMultipleOfFour(height) {
		res.Message = fmt.Sprintf("dimensions %dx%d not multiples of 4 (required for block compression)", width, height)
		return res
	}

	res.Valid = true
	if !IsPowerOfTwo(width) || !IsPowerOfTwo(height) {
		res.Advisory = true
		res.Message = fmt.Sprintf("dimensions %dx%d not powers of 2 (may cause issues on some GPUs)", width, height)
		return res
	}

	res.Message = fmt.Sprintf("dimensions %dx%d valid", width, height)
	return res
}

// Validator checks textures before any compression work starts.
type Validator struct {
	logger      *logrus.Logger
	orientation metadata.OrientationReader
}

// NewValidator returns a Validator. orientation may be nil.
func NewValidator(logger *logrus.Logger, orientation metadata.OrientationReader) *Validator {
	return &Validator{
		logger:      logger,
		orientation: orientation,
	}
}

// OrientationCacheStats reports the orientation reader's cache counters,
// if it keeps any.
func (v *Validator) OrientationCacheStats() (metadata.CacheStats, bool) {
	provider, ok := v.orientation.(metadata.CacheStatsProvider)
	if !ok {
		return metadata.CacheStats{}, false
	}
	return provider.GetCacheStats(), true
}

// Validate reads the image header at path and checks its dimensions.
func (v *Validator) Validate(path string) ValidationResult {
	cfg, err := DecodeConfig(path)
	if err != nil {
		return ValidationResult{
			Path:    path,
			Message: fmt.Sprintf("failed to read image: %v", err),
			Err:     err,
		}
	}

	res := CheckDimensions(cfg.Width, cfg.Height)
	res.Path = path

	if res.Valid && v.orientation != nil && v.orientation.SupportsFile(path) {
		o, err := v.orientation.Orientation(path)
		if err != nil {
			v.logger.Debugf("Could not read orientation of %s: %v", path, err)
		} else if o != metadata.OrientationNormal {
			res.Advisory = true
			res.Message += fmt.Sprintf("; EXIF orientation %d is ignored by block encoders", o)
			if metadata.SwapsAxes(o) {
				res.Message += fmt.Sprintf(" (viewers show it as %dx%d)", res.Height, res.Width)
			}
		}
	}

	return res
}

// ValidateAll validates paths with at most workers checks in flight.
// Results are returned in the order of paths.
func (v *Validator) ValidateAll(ctx context.Context, paths []string, workers int) ([]ValidationResult, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]ValidationResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = v.Validate(path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validation interrupted: %w", err)
	}
	return results, nil
}
