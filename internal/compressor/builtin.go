package compressor

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"texture-compressor-go/internal/texture"

	"github.com/disintegration/imaging"
	"github.com/woozymasta/bcn"
)

// BuiltinEncoder encodes BC1/BC2/BC3 in-process and writes a plain DDS file
// with a single surface.
type BuiltinEncoder struct {
	options *bcn.EncodeOptions
}

// NewBuiltinEncoder returns an in-process encoder. quality "fast" trades
// quality for speed; anything else uses the library defaults.
func NewBuiltinEncoder(quality string) *BuiltinEncoder {
	var opts *bcn.EncodeOptions
	if strings.EqualFold(quality, "fast") {
		opts = &bcn.EncodeOptions{QualityLevel: bcn.QualityLevelFast}
	}
	return &BuiltinEncoder{options: opts}
}

// Name identifies the encoder.
func (b *BuiltinEncoder) Name() string {
	return "builtin"
}

// Encode decodes the source image, block-compresses it and writes the DDS.
func (b *BuiltinEncoder) Encode(ctx context.Context, job texture.Job) error {
	format, err := bcnFormat(job.Format)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := imaging.Open(job.InputPath)
	if err != nil {
		return fmt.Errorf("open error: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	type encoded struct {
		data []byte
		err  error
	}
	done := make(chan encoded, 1)
	go func() {
		data, _, _, err := bcn.EncodeImageWithOptions(imaging.Clone(img), format, b.options)
		done <- encoded{data: data, err: err}
	}()

	// bcn cannot be interrupted: on timeout the goroutine finishes its
	// encode in the background and its result is dropped.
	var enc encoded
	select {
	case <-ctx.Done():
		return ctx.Err()
	case enc = <-done:
	}
	if enc.err != nil {
		return fmt.Errorf("encode error: %w", enc.err)
	}

	bounds := img.Bounds()
	return writeDDS(job.OutputPath, format, bounds, enc.data)
}

func bcnFormat(f texture.Format) (bcn.Format, error) {
	switch f.Name {
	case texture.BC1.Name:
		return bcn.FormatDXT1, nil
	case texture.BC2.Name:
		return bcn.FormatDXT3, nil
	case texture.BC3.Name:
		return bcn.FormatDXT5, nil
	default:
		return bcn.FormatUnknown, fmt.Errorf("%w: %s", texture.ErrUnknownFormat, f.Name)
	}
}

// writeDDS writes to a temporary file next to path and renames it into place,
// so a reader never sees a half-written texture.
func writeDDS(path string, format bcn.Format, bounds image.Rectangle, payload []byte) error {
	hdr, err := ddsHeader(uint32(bounds.Dx()), uint32(bounds.Dy()), uint32(len(payload)), format)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := bcn.WriteDDSMagic(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write DDS magic: %w", err)
	}
	if err := bcn.WriteDDSHeader(tmp, hdr); err != nil {
		tmp.Close()
		return fmt.Errorf("write DDS header: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write DDS payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename error: %w", err)
	}
	return nil
}

func ddsHeader(width, height, linearSize uint32, format bcn.Format) (*bcn.DDSHeader, error) {
	hdr := &bcn.DDSHeader{
		Size:              bcn.DDSHeaderSize,
		Flags:             uint32(bcn.DDSFlagCaps | bcn.DDSFlagHeight | bcn.DDSFlagWidth | bcn.DDSFlagPixelFormat | bcn.DDSFlagLinearSize),
		Height:            height,
		Width:             width,
		PitchOrLinearSize: linearSize,
		Depth:             1,
		MipMapCount:       1,
		Caps:              uint32(bcn.DDSCapsTexture),
	}
	hdr.PixelFormat.Size = bcn.DDSPixelFormatSize
	hdr.PixelFormat.Flags = bcn.DDSPFFourCC

	switch format {
	case bcn.FormatDXT1:
		hdr.PixelFormat.FourCC = fourCC("DXT1")
	case bcn.FormatDXT3:
		hdr.PixelFormat.FourCC = fourCC("DXT3")
	case bcn.FormatDXT5:
		hdr.PixelFormat.FourCC = fourCC("DXT5")
	default:
		return nil, fmt.Errorf("%w: unsupported block format", texture.ErrUnknownFormat)
	}
	return hdr, nil
}

func fourCC(s string) uint32 {
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}
