package gameinfo

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// Fake collaborators
// ============================================================================

// fakeBundle serves sub-entries from a map; missing names report
// os.ErrNotExist like the real container reader.
type fakeBundle struct {
	entries map[string][]byte
	gate    <-chan struct{}
}

func (b *fakeBundle) ReadSubFile(name string) ([]byte, error) {
	if b.gate != nil {
		<-b.gate
	}
	data, ok := b.entries[name]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", name, os.ErrNotExist)
	}
	return data, nil
}

func (b *fakeBundle) Close() error { return nil }

// fakeVolume serves files from a map keyed by absolute path.
type fakeVolume struct {
	files map[string][]byte
}

func (v *fakeVolume) ReadFile(path string) ([]byte, error) {
	data, ok := v.files[path]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", path, os.ErrNotExist)
	}
	return data, nil
}

func (v *fakeVolume) Close() error { return nil }

// fakeOpener hands out fake bundles and volumes per path. A nil entry for a
// path simulates a structural open failure.
type fakeOpener struct {
	mu      sync.Mutex
	bundles map[string]*fakeBundle
	volumes map[string]*fakeVolume
}

func (o *fakeOpener) OpenBundle(path string) (Bundle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.bundles[path]
	if !ok || b == nil {
		return nil, fmt.Errorf("invalid bundle %s", path)
	}
	return b, nil
}

func (o *fakeOpener) OpenVolume(path string) (Volume, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.volumes[path]
	if !ok || v == nil {
		return nil, fmt.Errorf("no block device for %s", path)
	}
	return v, nil
}

// fakeCodec parses "KEY=value" lines; the blob "corrupt" fails.
type fakeCodec struct{}

func (fakeCodec) Parse(data []byte) (map[string]string, error) {
	if string(data) == "corrupt" {
		return nil, fmt.Errorf("bad metadata blob")
	}

	attrs := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			attrs[k] = v
		}
	}
	return attrs, nil
}

// metaBlob builds a fakeCodec blob with a TITLE entry.
func metaBlob(title string) []byte {
	return []byte("TITLE=" + title + "\nDISC_ID=TEST00001")
}

// fakeDecoder decodes anything except payloads prefixed "bad".
type fakeDecoder struct{}

func (fakeDecoder) Decode(data []byte) (*Artwork, error) {
	if strings.HasPrefix(string(data), "bad") {
		return nil, fmt.Errorf("not an image")
	}
	return &Artwork{Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), Format: "png"}, nil
}

// ============================================================================
// Capturing metrics
// ============================================================================

type loadObservation struct {
	kind    Kind
	outcome string
}

type captureMetrics struct {
	mu          sync.Mutex
	hits        int
	misses      int
	escalations int
	staleWrites int
	recordCount int
	loads       []loadObservation
	decodes     map[string]int // "slot/outcome" -> count
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{decodes: make(map[string]int)}
}

func (m *captureMetrics) ObserveLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *captureMetrics) ObserveEscalation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations++
}

func (m *captureMetrics) ObserveLoad(kind Kind, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, loadObservation{kind: kind, outcome: outcome})
}

func (m *captureMetrics) ObserveDecode(slot SlotID, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodes[slot.String()+"/"+outcome]++
}

func (m *captureMetrics) ObserveStaleWrite() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleWrites++
}

func (m *captureMetrics) RecordCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCount = count
}

func (m *captureMetrics) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loads)
}

func (m *captureMetrics) stale() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleWrites
}
