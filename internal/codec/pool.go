package codec

import (
	"fmt"
	"net/http"
	"sync"

	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/metrics"
)

// DefaultPoolLimit bounds the number of pooled decoders per pool.
const DefaultPoolLimit = 32

type poolKey struct {
	id            ID
	width, height int
}

type poolEntry struct {
	key    poolKey
	dec    Decoder
	inUse  bool
	closed bool
}

// Lease is a decoder borrowed from a Pool. It must be handed back with
// Pool.Release.
type Lease struct {
	Decoder
	entry *poolEntry
}

// PoolStats is a point-in-time view of a pool.
type PoolStats struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	InUse   int    `json:"in_use"`
	Limit   int    `json:"limit"`
	Refs    int    `json:"refs"`
}

// Pool reuses decoders keyed by (codec, width, height). Open and Close pair
// up like a reference count; decoders acquired while the pool is open are
// tracked and returned to it on Release, otherwise they are freed on Release.
type Pool struct {
	name   string
	lib    Library
	limit  int
	logger logger.Logger

	registerOnce sync.Once
	registerErr  error

	mu      sync.Mutex
	refs    int
	entries []*poolEntry
}

// NewPool creates a pool. A limit <= 0 selects DefaultPoolLimit.
func NewPool(name string, lib Library, limit int, log logger.Logger) *Pool {
	if limit <= 0 {
		limit = DefaultPoolLimit
	}
	if log == nil {
		log = logger.Discard
	}
	return &Pool{
		name:   name,
		lib:    lib,
		limit:  limit,
		logger: log.WithField("pool", name),
	}
}

func (p *Pool) Name() string { return p.name }

// Open takes a reference on the pool. The first Open registers the codec library.
func (p *Pool) Open() error {
	p.registerOnce.Do(func() {
		p.registerErr = p.lib.Register()
	})
	if p.registerErr != nil {
		return apperrors.WrapConstructionError(p.registerErr, "codec library registration failed")
	}

	p.mu.Lock()
	p.refs++
	p.mu.Unlock()
	return nil
}

// Close drops a reference. Dropping the last one frees every pooled decoder.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.refs == 0 {
		p.mu.Unlock()
		return
	}
	p.refs--
	if p.refs > 0 {
		p.mu.Unlock()
		return
	}
	entries := p.entries
	p.entries = nil
	for _, e := range entries {
		e.closed = true
	}
	p.mu.Unlock()

	for _, e := range entries {
		if e.inUse {
			p.logger.WithFields(map[string]interface{}{
				"codec":  e.key.id.String(),
				"width":  e.key.width,
				"height": e.key.height,
			}).Warn("Decoder still in use at pool teardown; a connector was not closed")
		}
		if err := e.dec.Close(); err != nil {
			p.logger.WithError(err).Warn("Failed to close pooled decoder")
		}
	}
	metrics.SetPoolStats(p.name, 0, 0)
}

// Acquire returns an idle pooled decoder for the geometry or builds a new one.
func (p *Pool) Acquire(id ID, width, height, threads int) (*Lease, error) {
	key := poolKey{id: id, width: width, height: height}

	p.mu.Lock()
	for _, e := range p.entries {
		if e.key == key && !e.inUse {
			e.inUse = true
			p.publishLocked()
			p.mu.Unlock()
			return &Lease{Decoder: e.dec, entry: e}, nil
		}
	}
	tracked := p.refs > 0
	if tracked && len(p.entries) >= p.limit {
		p.mu.Unlock()
		metrics.IncrementPoolExhausted(p.name)
		return nil, apperrors.Wrap(ErrPoolExhausted, apperrors.ErrorTypeResourceExhausted,
			fmt.Sprintf("%s decoder pool holds %d decoders", p.name, p.limit),
			http.StatusInsufficientStorage)
	}
	p.mu.Unlock()

	// Codec construction can be slow; build outside the lock.
	dec, err := p.lib.NewDecoder(id, width, height, threads)
	if err != nil {
		return nil, apperrors.WrapConstructionError(err,
			fmt.Sprintf("failed to open %s decoder %dx%d", id, width, height))
	}

	e := &poolEntry{key: key, dec: dec, inUse: true}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		// untracked: freed on release
		return &Lease{Decoder: dec}, nil
	}
	if len(p.entries) >= p.limit {
		_ = dec.Close()
		metrics.IncrementPoolExhausted(p.name)
		return nil, apperrors.Wrap(ErrPoolExhausted, apperrors.ErrorTypeResourceExhausted,
			fmt.Sprintf("%s decoder pool holds %d decoders", p.name, p.limit),
			http.StatusInsufficientStorage)
	}
	p.entries = append(p.entries, e)
	p.publishLocked()
	return &Lease{Decoder: dec, entry: e}, nil
}

// Release hands a lease back. Tracked decoders return to the pool; untracked
// ones are closed. Releasing after teardown is a no-op for tracked leases.
func (p *Pool) Release(l *Lease) {
	if l == nil {
		return
	}
	if l.entry == nil {
		if err := l.Decoder.Close(); err != nil {
			p.logger.WithError(err).Warn("Failed to close decoder")
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l.entry.closed {
		return
	}
	l.entry.inUse = false
	p.publishLocked()
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PoolStats{Name: p.name, Entries: len(p.entries), Limit: p.limit, Refs: p.refs}
	for _, e := range p.entries {
		if e.inUse {
			st.InUse++
		}
	}
	return st
}

func (p *Pool) publishLocked() {
	inUse := 0
	for _, e := range p.entries {
		if e.inUse {
			inUse++
		}
	}
	metrics.SetPoolStats(p.name, len(p.entries), inUse)
}
