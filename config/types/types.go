package types

import (
	"time"
)

// Duration is a time.Duration that unmarshals from the textual form
// accepted by time.ParseDuration ("15s", "1m30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err != nil {
		return err
	}
	d.Duration = duration
	return nil
}

// NewDuration returns a Duration wrapping the given time.Duration.
func NewDuration(duration time.Duration) Duration {
	return Duration{duration}
}

// KeystoreFileConfig has all the information needed to load a keystore file.
type KeystoreFileConfig struct {
	// Path is the file path of the key store file
	Path string `mapstructure:"Path"`

	// Password is the password to decrypt the key store file
	Password string `mapstructure:"Password"`
}
