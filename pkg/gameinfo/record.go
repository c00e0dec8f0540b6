// Package gameinfo implements the asynchronous metadata and artwork cache
// for game images.
//
// Callers on the foreground path ask for per-image metadata (title,
// attributes, icon, background art) by path. Populating that data means
// slow I/O: opening containers, mounting disc-image filesystems, reading
// whole files. The cache never does that work on the calling goroutine;
// instead each record is filled in by a one-shot loader task running on a
// background work queue, ordered by how recently the record was consulted.
//
// The foreground and background sides share records under a per-record
// mutex. The loader writes raw artwork bytes field by field; the foreground
// GetInfo path decodes whatever raw bytes have arrived into renderable
// images. Partially populated records are a normal, observable state.
//
// Key Design Principles:
//   - GetInfo never blocks on loader I/O and never returns an error
//   - Loader failures degrade silently: the affected field stays empty
//   - Records are superseded, not mutated, when callers escalate from
//     icon-only to background art; superseded loader tasks no-op
//   - Clear drains the work queue before releasing record state
package gameinfo

import (
	"image"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies the container shape of a game image, resolved once from
// the path's form when the record is created.
type Kind int

const (
	// KindExecutable is a raw executable image. It carries no metadata or
	// artwork; its loader is a deliberate no-op.
	KindExecutable Kind = iota

	// KindBundle is a flat container with named sub-entries for metadata,
	// icon and background art.
	KindBundle

	// KindOpticalImage is a disc image reached through a block device and a
	// read-only filesystem mount.
	KindOpticalImage
)

func (k Kind) String() string {
	switch k {
	case KindExecutable:
		return "executable"
	case KindBundle:
		return "bundle"
	case KindOpticalImage:
		return "optical"
	default:
		return "unknown"
	}
}

// DetectKind resolves the kind of a game image from its path.
// Unrecognized extensions are treated as optical images.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pbp":
		return KindBundle
	case ".elf", ".prx":
		return KindExecutable
	default:
		return KindOpticalImage
	}
}

// SlotID names one of a record's three artifact slots.
type SlotID int

const (
	SlotIcon SlotID = iota
	SlotBackground
	SlotBackgroundSecondary
)

func (s SlotID) String() string {
	switch s {
	case SlotIcon:
		return "icon"
	case SlotBackground:
		return "background"
	case SlotBackgroundSecondary:
		return "background_secondary"
	default:
		return "unknown"
	}
}

// SlotState is the lifecycle position of one artifact slot.
// Slots move Empty -> RawBytes -> Decoded at most once and never revert
// except through Clear or FlushBGs.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotRawBytes
	SlotDecoded
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotRawBytes:
		return "raw"
	case SlotDecoded:
		return "decoded"
	default:
		return "unknown"
	}
}

// Artwork is a decoded, renderable artifact.
type Artwork struct {
	Image  image.Image
	Format string // decoder-reported source format, e.g. "png"
}

// slot holds one artifact in exactly one of its three states. The record
// mutex guards it; raw and art are never both set.
type slot struct {
	raw       []byte
	art       *Artwork
	decodedAt time.Time
}

func (s *slot) state() SlotState {
	switch {
	case s.art != nil:
		return SlotDecoded
	case len(s.raw) > 0:
		return SlotRawBytes
	default:
		return SlotEmpty
	}
}

func (s *slot) reset() {
	s.raw = nil
	s.art = nil
	s.decodedAt = time.Time{}
}

// Record is the cached state for one game image path.
//
// A record is created empty by the cache on first lookup and populated by
// exactly one loader task; the foreground decode step and any number of
// readers consult it afterwards. All mutable fields are guarded by mu.
// The handle stays valid until the cache is cleared.
type Record struct {
	path           string
	kind           Kind
	wantBackground bool

	// lastAccess is unix nanoseconds of the last foreground lookup. It is
	// atomic rather than mu-guarded because the work queue reads it as the
	// scheduling priority while the record may be mid-populate.
	lastAccess atomic.Int64

	mu                  sync.Mutex
	title               string
	attrs               map[string]string
	icon                slot
	background          slot
	backgroundSecondary slot
}

func newRecord(path string, wantBackground bool) *Record {
	return &Record{
		path:           path,
		kind:           DetectKind(path),
		wantBackground: wantBackground,
	}
}

// Path returns the record's immutable key.
func (r *Record) Path() string { return r.path }

// Kind returns the container kind resolved at record creation.
func (r *Record) Kind() Kind { return r.kind }

// WantBackground reports whether this record fetches background art.
// Fixed at creation; escalation replaces the record instead of flipping it.
func (r *Record) WantBackground() bool { return r.wantBackground }

// Title returns the game title, or "" while the loader has not delivered
// metadata (or the image has none).
func (r *Record) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// Attr returns one metadata attribute, or "" when absent.
func (r *Record) Attr(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attrs[key]
}

// Attrs returns a copy of the flat metadata table.
func (r *Record) Attrs() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}

// Artwork returns the decoded artifact for a slot, or nil while the slot is
// empty or still raw.
func (r *Record) Artwork(id SlotID) *Artwork {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot(id).art
}

// SlotState returns the lifecycle state of a slot.
func (r *Record) SlotState(id SlotID) SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot(id).state()
}

// DecodedAt returns when a slot's artifact was decoded (diagnostic; zero
// while undecoded).
func (r *Record) DecodedAt(id SlotID) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot(id).decodedAt
}

// LastAccess returns the time of the last foreground lookup.
func (r *Record) LastAccess() time.Time {
	return time.Unix(0, r.lastAccess.Load())
}

// touch stamps the record as just-consulted.
func (r *Record) touch() {
	r.lastAccess.Store(time.Now().UnixNano())
}

// priority is the scheduling priority of the record's loader task:
// seconds of lastAccess, so most recently consulted records load first.
func (r *Record) priority() float64 {
	return float64(r.lastAccess.Load()) / float64(time.Second)
}

// slot maps a SlotID to its field. Callers hold r.mu.
func (r *Record) slot(id SlotID) *slot {
	switch id {
	case SlotIcon:
		return &r.icon
	case SlotBackground:
		return &r.background
	default:
		return &r.backgroundSecondary
	}
}

// setMetadata installs the parsed metadata table. Called once by the loader.
func (r *Record) setMetadata(title string, attrs map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title = title
	r.attrs = attrs
}

// setRaw installs loader-read raw bytes into a slot. The transition is
// monotonic: bytes land only in an empty slot.
func (r *Record) setRaw(id SlotID, data []byte) {
	if len(data) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slot(id)
	if s.state() != SlotEmpty {
		return
	}
	s.raw = data
}

// flushBackgrounds releases both background slots back to empty, leaving
// icon and metadata untouched.
func (r *Record) flushBackgrounds() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.background.reset()
	r.backgroundSecondary.reset()
}

// release drops all artifact state. Only the cache calls this, after the
// work queue has drained.
func (r *Record) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.icon.reset()
	r.background.reset()
	r.backgroundSecondary.reset()
	r.title = ""
	r.attrs = nil
}
