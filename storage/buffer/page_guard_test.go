package buffer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageGuardRelease(t *testing.T) {
	bpm, dm := newTestPool(t, 2)
	seedPages(t, dm, 1)

	guard, err := bpm.FetchPageGuard(0)
	require.NoError(t, err)
	assert.Equal(t, pageContent(0), string(guard.Data()[:8]))
	assert.Equal(t, int32(1), guard.Page().PinCount())
	assert.Equal(t, 0, bpm.EvictableFrameCount())

	pg := guard.Page()
	require.NoError(t, guard.Release())
	assert.Equal(t, int32(0), pg.PinCount())
	assert.False(t, pg.IsDirty())
	assert.Equal(t, 1, bpm.EvictableFrameCount())

	// a released guard hands out nothing and never unpins twice
	assert.Nil(t, guard.Data())
	assert.Nil(t, guard.Page())
	assert.True(t, errors.Is(guard.Release(), ErrGuardReleased))
	assert.True(t, errors.Is(guard.MarkDirty(), ErrGuardReleased))
	assert.Equal(t, int32(0), pg.PinCount())
	requireAudit(t, bpm)
}

func TestPageGuardMarkDirty(t *testing.T) {
	bpm, dm := newTestPool(t, 1)

	guard, err := bpm.NewPageGuard()
	require.NoError(t, err)
	pageID := guard.PageID()
	guard.Page().Copy(0, []byte("guarded"))
	require.NoError(t, guard.MarkDirty())
	pg := guard.Page()
	require.NoError(t, guard.Release())
	assert.True(t, pg.IsDirty())

	// evicting the page writes the guarded bytes back
	other, err := bpm.NewPageGuard()
	require.NoError(t, err)
	defer other.Release()

	buf := make([]byte, len(pg.Data()))
	require.NoError(t, dm.ReadPage(pageID, buf))
	assert.Equal(t, "guarded", string(buf[:7]))
}

func TestPageGuardPropagatesErrors(t *testing.T) {
	bpm, dm := newTestPool(t, 1)
	seedPages(t, dm, 2)

	held, err := bpm.FetchPageGuard(0)
	require.NoError(t, err)

	_, err = bpm.FetchPageGuard(1)
	assert.True(t, errors.Is(err, ErrPoolExhausted))
	_, err = bpm.NewPageGuard()
	assert.True(t, errors.Is(err, ErrPoolExhausted))

	require.NoError(t, held.Release())
	dm.failReads.Store(true)
	_, err = bpm.FetchPageGuard(1)
	assert.True(t, errors.Is(err, ErrIO))
	requireAudit(t, bpm)
}
