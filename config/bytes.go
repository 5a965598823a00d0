package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Bytes is a byte size accepting either a plain integer or a human string like "10MiB" or "512 kB".
type Bytes uint64

func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("byte size at line %d: expected a scalar", node.Line)
	}
	raw := node.Value
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("parse byte size %q: %w", raw, err)
	}
	*b = Bytes(n)
	return nil
}

func (b Bytes) String() string {
	return humanize.IBytes(uint64(b))
}
