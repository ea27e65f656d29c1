package value

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode copies v into out, which must be a pointer. Clusters decode into
// structs or maps, arrays into slices or arrays. Struct fields are matched
// by their `fpga` tag, falling back to a case-insensitive field name match.
func Decode(v Value, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "fpga",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("value: decoder: %w", err)
	}
	if err := dec.Decode(v.ToGo()); err != nil {
		return fmt.Errorf("value: decode into %T: %w", out, err)
	}
	return nil
}
