// Package resolver turns inspect link text into item records. Masked links
// decode locally; unmasked links go through a cache and then the inspect
// queue.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/inspectctl/internal/cache"
	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/observability"
	"github.com/danmuck/inspectctl/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var ErrNoSession = errors.New("resolver: unmasked links need a game session")

const (
	SourceLocal = "local"
	SourceCache = "cache"
	SourceQueue = "queue"
)

// Inspector resolves one unmasked link. *inspect.Client satisfies it.
type Inspector interface {
	Inspect(ctx context.Context, info link.Info) (item.Record, error)
}

type Config struct {
	CacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{CacheTTL: 24 * time.Hour}
}

type Resolver struct {
	cfg       Config
	inspector Inspector
	cache     cache.Cache
}

// New builds a resolver. A nil inspector limits it to masked links; a nil
// cache disables memoisation.
func New(cfg Config, inspector Inspector, c cache.Cache) *Resolver {
	return &Resolver{cfg: cfg, inspector: inspector, cache: c}
}

// Resolution is a decoded item plus where it came from.
type Resolution struct {
	Link   link.Info   `json:"link"`
	Item   item.Record `json:"item"`
	Source string      `json:"source"`
	// Masked is the canonical masked link carrying Item.
	Masked string `json:"masked"`
}

// Encoded is a record rendered as a masked payload.
type Encoded struct {
	Hex  string `json:"hex"`
	Link string `json:"link"`
}

// CacheKey names the cache slot for an unmasked reference.
func CacheKey(ref link.Reference) string {
	return fmt.Sprintf("inspect:%c%s:%s:%s", ref.Kind, ref.RefID, ref.AssetID, ref.ClassID)
}

func (r *Resolver) Decode(ctx context.Context, text string) (Resolution, error) {
	info, err := link.Classify(text)
	if err != nil {
		return Resolution{}, err
	}
	if info.Masked() {
		rec, err := frame.Decode(info.Hex)
		observability.RecordResolution(string(info.Kind), SourceLocal, err == nil)
		if err != nil {
			return Resolution{Link: info}, err
		}
		return Resolution{Link: info, Item: rec, Source: SourceLocal, Masked: frame.Encode(rec)}, nil
	}
	return r.resolveUnmasked(ctx, info)
}

func (r *Resolver) resolveUnmasked(ctx context.Context, info link.Info) (Resolution, error) {
	key := CacheKey(*info.Ref)
	if rec, ok := r.lookup(ctx, key); ok {
		observability.RecordResolution(string(info.Kind), SourceCache, true)
		return Resolution{Link: info, Item: rec, Source: SourceCache, Masked: frame.Encode(rec)}, nil
	}

	if r.inspector == nil {
		observability.RecordResolution(string(info.Kind), SourceQueue, false)
		return Resolution{Link: info}, ErrNoSession
	}
	rec, err := r.inspector.Inspect(ctx, info)
	observability.RecordResolution(string(info.Kind), SourceQueue, err == nil)
	if err != nil {
		return Resolution{Link: info}, err
	}

	hexPayload := frame.EncodeHex(rec)
	r.store(ctx, key, hexPayload)
	return Resolution{Link: info, Item: rec, Source: SourceQueue, Masked: link.FormatMasked(hexPayload)}, nil
}

func (r *Resolver) lookup(ctx context.Context, key string) (item.Record, bool) {
	if r.cache == nil {
		return item.Record{}, false
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("resolver.lookup cache read failed")
		}
		return item.Record{}, false
	}
	rec, err := frame.Decode(string(raw))
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("resolver.lookup cached payload unreadable")
		_ = r.cache.Delete(ctx, key)
		return item.Record{}, false
	}
	return rec, true
}

func (r *Resolver) store(ctx context.Context, key, hexPayload string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, []byte(hexPayload), r.cfg.CacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("resolver.store cache write failed")
	}
}

// Encode renders rec as a masked payload and link.
func (r *Resolver) Encode(rec item.Record) Encoded {
	h := frame.EncodeHex(rec)
	return Encoded{Hex: h, Link: link.FormatMasked(h)}
}
