package gameinfo

import (
	"errors"
	"os"
	"time"

	"github.com/gameshelf/gameshelf/internal/logger"
)

// Fixed resource names inside game images.
const (
	bundleMetadataEntry            = "PARAM.SFO"
	bundleIconEntry                = "ICON0.PNG"
	bundleBackgroundEntry          = "PIC1.PNG"
	bundleBackgroundSecondaryEntry = "PIC0.PNG"

	volumeRoot                    = "/PSP_GAME"
	volumeMetadataFile            = volumeRoot + "/PARAM.SFO"
	volumeIconFile                = volumeRoot + "/ICON0.PNG"
	volumeBackgroundFile          = volumeRoot + "/PIC1.PNG"
	volumeBackgroundSecondaryFile = volumeRoot + "/PIC0.PNG"
)

// titleKey is the metadata attribute the record title comes from.
const titleKey = "TITLE"

// workItem populates one record. It is bound to its record at creation and
// runs exactly once on the cache's background queue.
//
// The item writes field by field, taking the record lock per field, and
// re-checks that its record is still the live one for the path before every
// write. A superseded item silently does nothing; there are no retries.
type workItem struct {
	cache *Cache
	rec   *Record
}

// Priority is the record's last access time; read live by the queue so a
// record consulted while queued jumps ahead.
func (w *workItem) Priority() float64 {
	return w.rec.priority()
}

func (w *workItem) Run() {
	start := time.Now()
	outcome := "ok"

	switch w.rec.kind {
	case KindExecutable:
		// Raw executables carry no metadata or artwork. The record stays
		// empty forever, which is the intended short-circuit.
	case KindBundle:
		if !w.loadBundle() {
			outcome = "aborted"
		}
	case KindOpticalImage:
		if !w.loadVolume() {
			outcome = "aborted"
		}
	}

	if m := w.cache.metrics; m != nil {
		m.ObserveLoad(w.rec.kind, outcome, time.Since(start))
	}
}

// loadBundle populates the record from a container's sub-entries.
// An unopenable container aborts without mutating the record.
func (w *workItem) loadBundle() bool {
	b, err := w.cache.opener.OpenBundle(w.rec.path)
	if err != nil {
		logger.Debug("cannot open bundle", "path", w.rec.path, "error", err)
		return false
	}
	defer b.Close()

	if blob, err := b.ReadSubFile(bundleMetadataEntry); err == nil {
		w.storeMetadata(blob)
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Debug("bundle metadata read failed", "path", w.rec.path, "error", err)
	}

	w.copyEntry(b, bundleIconEntry, SlotIcon)

	if w.rec.wantBackground {
		w.copyEntry(b, bundleBackgroundEntry, SlotBackground)
		w.copyEntry(b, bundleBackgroundSecondaryEntry, SlotBackgroundSecondary)
	}

	return true
}

// loadVolume populates the record from the fixed files of a mounted disc
// image. An unconstructable block device aborts without mutating the record.
func (w *workItem) loadVolume() bool {
	v, err := w.cache.opener.OpenVolume(w.rec.path)
	if err != nil {
		logger.Debug("cannot open volume", "path", w.rec.path, "error", err)
		return false
	}
	defer v.Close()

	if blob, err := v.ReadFile(volumeMetadataFile); err == nil {
		w.storeMetadata(blob)
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Debug("volume metadata read failed", "path", w.rec.path, "error", err)
	}

	w.copyFile(v, volumeIconFile, SlotIcon)

	if w.rec.wantBackground {
		w.copyFile(v, volumeBackgroundFile, SlotBackground)
		w.copyFile(v, volumeBackgroundSecondaryFile, SlotBackgroundSecondary)
	}

	return true
}

// copyEntry reads one bundle sub-entry into a slot; a missing entry is not
// an error.
func (w *workItem) copyEntry(b Bundle, name string, id SlotID) {
	data, err := b.ReadSubFile(name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("bundle entry read failed",
				"path", w.rec.path, "entry", name, "error", err)
		}
		return
	}
	w.storeRaw(id, data)
}

// copyFile reads one volume file into a slot; a missing file is not an
// error.
func (w *workItem) copyFile(v Volume, name string, id SlotID) {
	data, err := v.ReadFile(name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("volume file read failed",
				"path", w.rec.path, "file", name, "error", err)
		}
		return
	}
	w.storeRaw(id, data)
}

// storeMetadata parses a metadata blob and installs title and attributes.
func (w *workItem) storeMetadata(blob []byte) {
	attrs, err := w.cache.codec.Parse(blob)
	if err != nil {
		logger.Debug("metadata parse failed", "path", w.rec.path, "error", err)
		return
	}

	if !w.cache.isCurrent(w.rec) {
		w.staleWrite()
		return
	}
	w.rec.setMetadata(attrs[titleKey], attrs)
}

// storeRaw installs raw artwork bytes into a slot.
func (w *workItem) storeRaw(id SlotID, data []byte) {
	if len(data) == 0 {
		return
	}

	if !w.cache.isCurrent(w.rec) {
		w.staleWrite()
		return
	}
	w.rec.setRaw(id, data)
}

func (w *workItem) staleWrite() {
	if m := w.cache.metrics; m != nil {
		m.ObserveStaleWrite()
	}
	logger.Debug("skipping write to superseded record", "path", w.rec.path)
}
