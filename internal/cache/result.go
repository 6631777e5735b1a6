package cache

// Outcome is the three-valued result of a cache probe. Miss and
// Unavailable both route the caller to live computation; the split
// exists so substrate trouble is observable without ever being fatal.
type Outcome int

const (
	Hit Outcome = iota
	Miss
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Served reports whether the probe produced a usable value.
func (o Outcome) Served() bool {
	return o == Hit
}
