package metadata

// EXIF orientation values (TIFF tag 0x0112).
const (
	OrientationNormal     = 1
	OrientationFlipH      = 2
	OrientationRotate180  = 3
	OrientationFlipV      = 4
	OrientationTranspose  = 5
	OrientationRotate90   = 6
	OrientationTransverse = 7
	OrientationRotate270  = 8
)

// OrientationReader reads the stored display orientation of an image.
type OrientationReader interface {
	// Orientation returns the EXIF orientation, or OrientationNormal when
	// the file carries none.
	Orientation(filePath string) (int, error)
	SupportsFile(filePath string) bool
}

// CacheStatsProvider is implemented by readers that cache their lookups.
type CacheStatsProvider interface {
	GetCacheStats() CacheStats
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64
	Misses       int64
	HitRate      float64
	TotalQueries int64
}

// SwapsAxes reports whether an orientation rotates the image by 90 degrees,
// so the displayed width is the stored height.
func SwapsAxes(orientation int) bool {
	return orientation >= OrientationTranspose && orientation <= OrientationRotate270
}

// OrientationName returns a human-readable name for an orientation value.
func OrientationName(orientation int) string {
	switch orientation {
	case OrientationNormal:
		return "normal"
	case OrientationFlipH:
		return "flipped horizontally"
	case OrientationRotate180:
		return "rotated 180"
	case OrientationFlipV:
		return "flipped vertically"
	case OrientationTranspose:
		return "transposed"
	case OrientationRotate90:
		return "rotated 90 CW"
	case OrientationTransverse:
		return "transversed"
	case OrientationRotate270:
		return "rotated 270 CW"
	default:
		return "unknown"
	}
}
