package batch

import (
	"texture-compressor-go/internal/compressor"
	"texture-compressor-go/internal/config"
	"texture-compressor-go/internal/metadata"
	"texture-compressor-go/internal/texture"

	"github.com/sirupsen/logrus"
)

// NewEncoder builds the encoder selected by cfg. The CLI backend fails when
// its binary cannot be found.
func NewEncoder(cfg *config.Config) (compressor.Encoder, error) {
	if cfg.Compressor.Backend == config.BackendBuiltin {
		return compressor.NewBuiltinEncoder(cfg.Compressor.Quality), nil
	}
	return compressor.NewCLIEncoder(cfg.Compressor.Binary)
}

// NewValidator builds the validator selected by cfg.
func NewValidator(cfg *config.Config, log *logrus.Logger) *texture.Validator {
	var orientation metadata.OrientationReader
	if cfg.Validation.CheckOrientation {
		orientation = metadata.NewEXIFReader(log)
	}
	return texture.NewValidator(log, orientation)
}
