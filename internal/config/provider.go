package config

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

var errReadBytes = errors.New("config: map provider does not support ReadBytes")

// mapProvider feeds dotted flag keys into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytes
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
