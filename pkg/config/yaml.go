package config

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// DecodeStrict decodes YAML from r into out and rejects unknown keys. An
// empty document leaves out untouched.
func DecodeStrict(r io.Reader, out any) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.NewValidationError("config", "invalid config", nil).WithCause(err)
	}
	return nil
}
