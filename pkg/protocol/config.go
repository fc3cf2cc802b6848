package protocol

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// NodeConfig carries the tuning parameters for one SDR capture node.
//
// Ranges and step sizes follow the HackRF One front end: LNA gain moves in
// 8 dB steps, VGA gain in 2 dB steps, and the amp is a single on/off bit.
type NodeConfig struct {
	// StreamKinds is the non-empty set of capture pipelines the node runs.
	StreamKinds []StreamKind `json:"stream_kinds" mapstructure:"stream_kinds" yaml:"stream_kinds" validate:"required,min=1,dive,oneof=fft zigbee"`

	// Freq is the center frequency in Hz (1 MHz - 6 GHz).
	Freq uint64 `json:"freq" mapstructure:"freq" yaml:"freq" validate:"gte=1000000,lte=6000000000"`

	// Amp toggles the RF amplifier (0 or 1).
	Amp uint8 `json:"amp" mapstructure:"amp" yaml:"amp" validate:"lte=1"`

	// Lna is the LNA (IF) gain in dB, 0-40 in steps of 8.
	Lna uint8 `json:"lna" mapstructure:"lna" yaml:"lna" validate:"lte=40"`

	// Vga is the VGA (baseband) gain in dB, 0-62 in steps of 2.
	Vga uint8 `json:"vga" mapstructure:"vga" yaml:"vga" validate:"lte=62"`

	// SampleRate in samples per second (1 Msps - 20 Msps).
	SampleRate uint64 `json:"sample_rate" mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=1000000,lte=20000000"`
}

var validate = validator.New()

// Validate checks all field ranges and step sizes.
func (c *NodeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid node config: %w", err)
	}
	if c.Lna%8 != 0 {
		return fmt.Errorf("invalid node config: lna %d is not a multiple of 8", c.Lna)
	}
	if c.Vga%2 != 0 {
		return fmt.Errorf("invalid node config: vga %d is not a multiple of 2", c.Vga)
	}
	seen := make(map[StreamKind]struct{}, len(c.StreamKinds))
	for _, k := range c.StreamKinds {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("invalid node config: duplicate stream kind %q", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
