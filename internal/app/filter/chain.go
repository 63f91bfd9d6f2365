package filter

import (
	"github.com/osn942/spindle/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a chain with the standard exclusion set.
func NewChain() *Chain {
	c := &Chain{}
	c.Add(NewSeedFilter())
	c.Add(NewQueuedFilter())
	c.Add(NewHistoryFilter())
	c.Add(NewGenreAgreementFilter())
	return c
}

// Add appends a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence. It returns immediately when a
// filter rejects the candidate. Filters only run for paths they
// declare they apply to.
func (c *Chain) Execute(cand track.Track, exc *Exclusion, path Path) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(path) {
			continue
		}
		result := f.Check(cand, exc)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
