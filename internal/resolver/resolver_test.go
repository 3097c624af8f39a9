package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/inspectctl/internal/cache"
	"github.com/danmuck/inspectctl/internal/inspect"
	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/protocol/frame"
	"github.com/danmuck/inspectctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	maskedLink   = "steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20001807202C38808080F8034001430F689E"
	unmaskedLink = "steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20M625254122282020305A6760346663D30614827701953021"
)

type stubInspector struct {
	mu    sync.Mutex
	calls int
	rec   item.Record
	err   error
}

func (s *stubInspector) Inspect(_ context.Context, info link.Info) (item.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.rec, s.err
}

func TestDecodeMaskedIsLocal(t *testing.T) {
	testlog.Start(t)
	insp := &stubInspector{}
	r := New(DefaultConfig(), insp, nil)

	res, err := r.Decode(context.Background(), maskedLink)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
	assert.Equal(t, uint32(7), res.Item.DefIndex)
	assert.Equal(t, uint32(44), res.Item.PaintIndex)
	assert.Equal(t, float32(0.5), res.Item.Wear)
	assert.Equal(t, maskedLink, res.Masked)
	assert.Zero(t, insp.calls)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	testlog.Start(t)
	r := New(DefaultConfig(), nil, nil)
	_, err := r.Decode(context.Background(), "not a link")
	assert.ErrorIs(t, err, link.ErrInvalidLinkFormat)

	_, err = r.Decode(context.Background(), link.Prefix+"00AB")
	assert.ErrorIs(t, err, frame.ErrInvalidChecksumFraming)
}

func TestDecodeUnmaskedUsesQueueThenCache(t *testing.T) {
	testlog.Start(t)
	want := item.Record{DefIndex: 7, PaintIndex: 282, PatternSeed: 661, Wear: 0.07, ItemID: item.Some(uint64(6760346663))}
	insp := &stubInspector{rec: want}
	mem := cache.NewMemory(0)
	defer mem.Close()
	r := New(Config{CacheTTL: time.Minute}, insp, mem)

	first, err := r.Decode(context.Background(), unmaskedLink)
	require.NoError(t, err)
	assert.Equal(t, SourceQueue, first.Source)
	assert.True(t, want.Equal(first.Item))
	assert.Equal(t, frame.Encode(want), first.Masked)

	raw, err := mem.Get(context.Background(), "inspect:M625254122282020305:6760346663:30614827701953021")
	require.NoError(t, err)
	assert.Equal(t, frame.EncodeHex(want), string(raw))

	second, err := r.Decode(context.Background(), unmaskedLink)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.True(t, want.Equal(second.Item))
	assert.Equal(t, 1, insp.calls)
}

func TestDecodeUnmaskedErrorsAreNotCached(t *testing.T) {
	testlog.Start(t)
	insp := &stubInspector{err: inspect.ErrRequestTimedOut}
	mem := cache.NewMemory(0)
	defer mem.Close()
	r := New(DefaultConfig(), insp, mem)

	_, err := r.Decode(context.Background(), unmaskedLink)
	assert.True(t, errors.Is(err, inspect.ErrRequestTimedOut))
	assert.Zero(t, mem.Len())
}

func TestDecodeUnmaskedUnreadableCacheEntryFallsThrough(t *testing.T) {
	testlog.Start(t)
	insp := &stubInspector{rec: item.Record{DefIndex: 1}}
	mem := cache.NewMemory(0)
	defer mem.Close()
	info, err := link.Classify(unmaskedLink)
	require.NoError(t, err)
	require.NoError(t, mem.Set(context.Background(), CacheKey(*info.Ref), []byte("zz"), 0))

	r := New(DefaultConfig(), insp, mem)
	res, err := r.Decode(context.Background(), unmaskedLink)
	require.NoError(t, err)
	assert.Equal(t, SourceQueue, res.Source)
	assert.Equal(t, 1, insp.calls)
}

func TestDecodeUnmaskedWithoutSession(t *testing.T) {
	testlog.Start(t)
	r := New(DefaultConfig(), nil, nil)
	_, err := r.Decode(context.Background(), unmaskedLink)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEncode(t *testing.T) {
	testlog.Start(t)
	r := New(DefaultConfig(), nil, nil)
	got := r.Encode(item.Record{DefIndex: 7, PaintIndex: 44, PatternSeed: 1, Wear: 0.5})
	assert.Equal(t, "001807202C38808080F8034001430F689E", got.Hex)
	assert.Equal(t, maskedLink, got.Link)
}

func TestCacheKey(t *testing.T) {
	testlog.Start(t)
	ref := link.Reference{Kind: link.RefOwner, RefID: "765", AssetID: "1", ClassID: "2"}
	assert.Equal(t, "inspect:S765:1:2", CacheKey(ref))
}
