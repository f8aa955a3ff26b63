package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_Get(t *testing.T) {
	var a Attributes
	a.Set(SlotModel, "X1")

	assert.Equal(t, "X1", a.Get(SlotModel))
	assert.Equal(t, NotCollected, a.Get(SlotSerial))
	assert.Equal(t, NotCollected, a.Get(Slot(-1)))
	assert.Equal(t, NotCollected, a.Get(Slot(SlotCount)))

	var nilAttrs *Attributes
	assert.Equal(t, NotCollected, nilAttrs.Get(SlotModel))
}

func TestAttributes_SetOutOfRangeIgnored(t *testing.T) {
	var a Attributes
	a.Set(Slot(42), "x")
	for i := range a {
		assert.Nil(t, a[i])
	}
}

func TestKernelSharesBasebandSlot(t *testing.T) {
	assert.Equal(t, SlotBasebandVersion, SlotKernelVersion)
}

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("returns copy", func(t *testing.T) {
		var a Attributes
		a.Set(SlotSerial, "S1")
		p := &StaticProvider{Attrs: &a}

		got, err := p.Attributes(ctx)
		require.NoError(t, err)
		got.Set(SlotSerial, "changed")

		again, err := p.Attributes(ctx)
		require.NoError(t, err)
		assert.Equal(t, "S1", again.Get(SlotSerial))
	})

	t.Run("no data", func(t *testing.T) {
		got, err := (&StaticProvider{}).Attributes(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := (&StaticProvider{Err: boom}).Attributes(ctx)
		require.ErrorIs(t, err, boom)
	})
}

func TestLoadStaticFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("ok", func(t *testing.T) {
		path := filepath.Join(dir, "ok.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"imei_primary":"356","model":"X1","serial":null}`), 0o600))

		p, err := LoadStaticFile(path)
		require.NoError(t, err)
		a, err := p.Attributes(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "356", a.Get(SlotIMEIPrimary))
		assert.Equal(t, "X1", a.Get(SlotModel))
		assert.Equal(t, NotCollected, a.Get(SlotSerial))
	})

	t.Run("unknown slot", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"favourite_colour":"red"}`), 0o600))
		_, err := LoadStaticFile(path)
		require.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
		_, err := LoadStaticFile(path)
		require.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadStaticFile(filepath.Join(dir, "nope.json"))
		require.Error(t, err)
	})
}
