package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// EXIFReader reads orientation tags from JPEG files.
type EXIFReader struct {
	logger *logrus.Logger
	cache  *sync.Map
	stats  CacheStats
	mutex  sync.RWMutex
}

// NewEXIFReader returns a new EXIFReader.
func NewEXIFReader(logger *logrus.Logger) *EXIFReader {
	return &EXIFReader{
		logger: logger,
		cache:  &sync.Map{},
	}
}

// Orientation returns the EXIF orientation of filePath. Files without EXIF
// data or without the tag report OrientationNormal.
func (e *EXIFReader) Orientation(filePath string) (int, error) {
	if !e.SupportsFile(filePath) {
		return 0, fmt.Errorf("file type not supported by EXIF reader: %s", filePath)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}

	key := cacheKey(filePath, fileInfo)
	if value, ok := e.cache.Load(key); ok {
		e.recordQuery(true)
		return value.(int), nil
	}
	e.recordQuery(false)

	orientation, err := e.readOrientation(filePath)
	if err != nil {
		return 0, err
	}

	e.cache.Store(key, orientation)
	return orientation, nil
}

// SupportsFile reports whether the file can carry EXIF data.
func (e *EXIFReader) SupportsFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return slices.Contains([]string{".jpg", ".jpeg"}, ext)
}

// GetCacheStats returns cache statistics for this reader.
func (e *EXIFReader) GetCacheStats() CacheStats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	stats := e.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

func (e *EXIFReader) readOrientation(filePath string) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Exported textures rarely carry an APP1 segment, so a decode failure
	// means "no orientation" rather than a broken file.
	x, err := exif.Decode(file)
	if err != nil {
		e.logger.Debugf("No usable EXIF data in %s: %v", filePath, err)
		return OrientationNormal, nil
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal, nil
	}

	value, err := tag.Int(0)
	if err != nil {
		return 0, fmt.Errorf("invalid orientation tag: %w", err)
	}
	if value < OrientationNormal || value > OrientationRotate270 {
		e.logger.Debugf("Ignoring out-of-range orientation %d in %s", value, filePath)
		return OrientationNormal, nil
	}

	e.logger.Debugf("Read EXIF orientation %d (%s) from %s", value, OrientationName(value), filePath)
	return value, nil
}

func cacheKey(filePath string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", filePath, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

func (e *EXIFReader) recordQuery(hit bool) {
	e.mutex.Lock()
	if hit {
		e.stats.Hits++
	} else {
		e.stats.Misses++
	}
	e.stats.TotalQueries++
	e.mutex.Unlock()
}
