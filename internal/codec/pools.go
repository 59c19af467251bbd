package codec

import (
	"sort"
	"sync"

	"github.com/zsiec/ingex/internal/logger"
)

// Pools hands out one Pool per codec family and opens and closes them together.
type Pools struct {
	lib    Library
	limit  int
	logger logger.Logger

	mu    sync.Mutex
	refs  int
	pools map[string]*Pool
}

func NewPools(lib Library, limit int, log logger.Logger) *Pools {
	if log == nil {
		log = logger.Discard
	}
	return &Pools{
		lib:    lib,
		limit:  limit,
		logger: log,
		pools:  make(map[string]*Pool),
	}
}

// Library returns the codec library shared by every pool.
func (ps *Pools) Library() Library { return ps.lib }

// Open takes a reference on every family pool, including ones created later.
func (ps *Pools) Open() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.refs == 0 {
		for _, p := range ps.pools {
			if err := p.Open(); err != nil {
				return err
			}
		}
	}
	ps.refs++
	return nil
}

// Close drops a reference; the last one tears every pool down.
func (ps *Pools) Close() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.refs == 0 {
		return
	}
	ps.refs--
	if ps.refs > 0 {
		return
	}
	for _, p := range ps.pools {
		p.Close()
	}
}

// Get returns the pool for a family, creating it on first use.
func (ps *Pools) Get(family string) (*Pool, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if p, ok := ps.pools[family]; ok {
		return p, nil
	}
	p := NewPool(family, ps.lib, ps.limit, ps.logger)
	if ps.refs > 0 {
		if err := p.Open(); err != nil {
			return nil, err
		}
	}
	ps.pools[family] = p
	return p, nil
}

// Stats returns per-family stats sorted by name.
func (ps *Pools) Stats() []PoolStats {
	ps.mu.Lock()
	pools := make([]*Pool, 0, len(ps.pools))
	for _, p := range ps.pools {
		pools = append(pools, p)
	}
	ps.mu.Unlock()

	stats := make([]PoolStats, 0, len(pools))
	for _, p := range pools {
		stats = append(stats, p.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
