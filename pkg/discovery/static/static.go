package static

import "github.com/amirimatin/go-ensemble/pkg/discovery"

// Seeds is a fixed seed list.
type Seeds []string

func (s Seeds) Seeds() []string { return append([]string(nil), s...) }

// New returns a Discovery over the given entries; see discovery.Normalize.
func New(entries ...string) Seeds { return Seeds(discovery.Normalize(entries...)) }

// Parse converts a comma-separated list into seeds.
func Parse(csv string) []string { return discovery.Normalize(csv) }

var _ discovery.Discovery = Seeds(nil)
