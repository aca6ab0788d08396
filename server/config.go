package server

import (
	"github.com/nftlane/nft-bridge-service/config/types"
)

// Config struct
type Config struct {
	// HTTPPort is TCP port the REST API listens on
	HTTPPort string `mapstructure:"HTTPPort"`

	// ReadTimeout is the maximum duration for reading an entire request
	ReadTimeout types.Duration `mapstructure:"ReadTimeout"`

	// WriteTimeout is the maximum duration before timing out response writes
	WriteTimeout types.Duration `mapstructure:"WriteTimeout"`

	// DefaultPageLimit is the page size used when the query omits one
	DefaultPageLimit uint `mapstructure:"DefaultPageLimit"`

	// MaxPageLimit caps the page size a query may ask for
	MaxPageLimit uint `mapstructure:"MaxPageLimit"`
}
