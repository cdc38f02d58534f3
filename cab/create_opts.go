package cab

import (
	"log/slog"

	"github.com/jmcooper8654/wix4/internal/mscab"
)

// Compression identifies the codec used for folder data.
type Compression = mscab.Compression

// Compression codes supported by the writer.
const (
	CompressionNone  = mscab.CompNone
	CompressionMSZIP = mscab.CompMSZIP
)

// createConfig holds configuration for cabinet creation.
type createConfig struct {
	compression    Compression
	filesPerFolder int
	setID          uint16
	cabinetIndex   uint16
	logger         *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (cfg *createConfig) log() *slog.Logger {
	if cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return cfg.logger
}

// CreateOption configures cabinet creation.
type CreateOption func(*createConfig)

// CreateWithCompression sets the folder data codec. The default is
// MSZIP; use CompressionNone to store folder data uncompressed.
func CreateWithCompression(c Compression) CreateOption {
	return func(cfg *createConfig) {
		cfg.compression = c
	}
}

// CreateWithFilesPerFolder caps how many files share one folder. Files
// in a folder form a single compression unit, so smaller folders cost
// compression ratio but decompress less to reach one file. Zero or
// negative puts every file in one folder.
func CreateWithFilesPerFolder(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.filesPerFolder = n
	}
}

// CreateWithSetID sets the identifier shared by all cabinets of a
// chained set.
func CreateWithSetID(id uint16) CreateOption {
	return func(cfg *createConfig) {
		cfg.setID = id
	}
}

// CreateWithCabinetIndex sets this cabinet's zero-based position in its
// chained set.
func CreateWithCabinetIndex(i uint16) CreateOption {
	return func(cfg *createConfig) {
		cfg.cabinetIndex = i
	}
}

// CreateWithLogger sets the logger used for creation diagnostics.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}
