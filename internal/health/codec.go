package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/zsiec/ingex/internal/codec"
)

// CodecChecker verifies the codec library can decode every supported codec.
type CodecChecker struct {
	lib codec.Library
}

func NewCodecChecker(lib codec.Library) *CodecChecker {
	return &CodecChecker{lib: lib}
}

func (c *CodecChecker) Name() string { return "codec_library" }

func (c *CodecChecker) Check(ctx context.Context) error {
	if c.lib == nil {
		return fmt.Errorf("no codec library configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if a, ok := c.lib.(interface{ Available() error }); ok {
		if err := a.Available(); err != nil {
			return fmt.Errorf("%s: %w", c.lib.Name(), err)
		}
	}
	return nil
}

func (c *CodecChecker) Details() map[string]interface{} {
	if c.lib == nil {
		return nil
	}
	return map[string]interface{}{"library": c.lib.Name()}
}

// PoolChecker reports degraded while any decoder pool sits at its limit,
// since new connectors of that family cannot be created.
type PoolChecker struct {
	pools *codec.Pools
}

func NewPoolChecker(pools *codec.Pools) *PoolChecker {
	return &PoolChecker{pools: pools}
}

func (p *PoolChecker) Name() string { return "decoder_pools" }

func (p *PoolChecker) Check(ctx context.Context) error {
	var full []string
	for _, s := range p.pools.Stats() {
		if s.Limit > 0 && s.InUse >= s.Limit {
			full = append(full, s.Name)
		}
	}
	if len(full) > 0 {
		return Degraded(fmt.Errorf("decoder pools exhausted: %s", strings.Join(full, ", ")))
	}
	return nil
}

func (p *PoolChecker) Details() map[string]interface{} {
	details := make(map[string]interface{})
	for _, s := range p.pools.Stats() {
		details[s.Name] = map[string]interface{}{
			"in_use":  s.InUse,
			"entries": s.Entries,
			"limit":   s.Limit,
		}
	}
	return details
}
