package cache

import "sync/atomic"

// Stats is a point-in-time snapshot of one cache tier's counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Unavailable int64 `json:"unavailable"`
	Stores      int64 `json:"stores"`
}

type counters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	unavailable atomic.Int64
	stores      atomic.Int64
}

func (c *counters) observe(o Outcome) {
	switch o {
	case Hit:
		c.hits.Add(1)
	case Miss:
		c.misses.Add(1)
	case Unavailable:
		c.unavailable.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Unavailable: c.unavailable.Load(),
		Stores:      c.stores.Load(),
	}
}
