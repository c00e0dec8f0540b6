package gameinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want Kind
	}{
		{"GAME.PBP", KindBundle},
		{"/roms/eboot.pbp", KindBundle},
		{"homebrew.elf", KindExecutable},
		{"plugin.PRX", KindExecutable},
		{"/roms/disc.iso", KindOpticalImage},
		{"/roms/disc.cso", KindOpticalImage},
		{"/roms/disc.img", KindOpticalImage}, // unrecognized extensions read as discs
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectKind(tc.path), "path %s", tc.path)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "executable", KindExecutable.String())
	assert.Equal(t, "bundle", KindBundle.String())
	assert.Equal(t, "optical", KindOpticalImage.String())
}

func TestRecord_SlotTransitionsAreMonotonic(t *testing.T) {
	t.Parallel()

	rec := newRecord("a.pbp", false)
	require.Equal(t, SlotEmpty, rec.SlotState(SlotIcon))

	rec.setRaw(SlotIcon, []byte("first"))
	require.Equal(t, SlotRawBytes, rec.SlotState(SlotIcon))

	// A second loader write must not clobber the slot.
	rec.setRaw(SlotIcon, []byte("second"))
	rec.mu.Lock()
	assert.Equal(t, []byte("first"), rec.icon.raw)
	rec.mu.Unlock()

	// Empty payloads never transition a slot.
	other := newRecord("b.pbp", false)
	other.setRaw(SlotIcon, nil)
	assert.Equal(t, SlotEmpty, other.SlotState(SlotIcon))
}

func TestRecord_TouchadvancesLastAccess(t *testing.T) {
	t.Parallel()

	rec := newRecord("a.pbp", false)
	rec.touch()
	first := rec.LastAccess()
	firstPriority := rec.priority()

	time.Sleep(2 * time.Millisecond)
	rec.touch()

	assert.True(t, rec.LastAccess().After(first))
	assert.Greater(t, rec.priority(), firstPriority,
		"priority follows recency")
}

func TestRecord_AttrsReturnsCopy(t *testing.T) {
	t.Parallel()

	rec := newRecord("a.pbp", false)
	rec.setMetadata("Game", map[string]string{"TITLE": "Game"})

	attrs := rec.Attrs()
	attrs["TITLE"] = "mutated"

	assert.Equal(t, "Game", rec.Attr("TITLE"))
	assert.Equal(t, "Game", rec.Title())
}
