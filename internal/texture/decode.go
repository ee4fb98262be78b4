package texture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// tgaHeaderSize is the fixed size of a Truevision TGA file header.
const tgaHeaderSize = 18

// DefaultExtensions lists the input extensions picked up by discovery.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".tga", ".bmp"}

// DecodeConfig reads the dimensions of an image without decoding its pixels.
func DecodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(path)) == ".tga" {
		return decodeTGAConfig(f)
	}

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return cfg, nil
}

// decodeTGAConfig reads width and height from a TGA header.
func decodeTGAConfig(r io.Reader) (image.Config, error) {
	var hdr [tgaHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return image.Config{}, fmt.Errorf("failed to read TGA header: %w", err)
	}

	switch hdr[2] {
	case 1, 2, 3, 9, 10, 11:
	default:
		return image.Config{}, fmt.Errorf("unsupported TGA image type %d", hdr[2])
	}

	width := int(binary.LittleEndian.Uint16(hdr[12:14]))
	height := int(binary.LittleEndian.Uint16(hdr[14:16]))
	if width == 0 || height == 0 {
		return image.Config{}, errors.New("TGA header has zero dimension")
	}

	return image.Config{Width: width, Height: height}, nil
}
