package tier

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// DiskName is the stats and metrics label of the L2 tier.
const DiskName = "l2_disk"

const defaultIndexFile = "cache-index.json"

// DiskConfig configures the persistent L2 tier.
type DiskConfig struct {
	Directory       string        `yaml:"cache_dir"`
	MaxSizeMB       int           `yaml:"max_size_mb"`
	Compression     bool          `yaml:"compression"`
	IndexFile       string        `yaml:"index_file"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// diskItem is the durable per-key metadata kept in the index file. The
// payload itself lives in a separate data file named by a hash of the key.
type diskItem struct {
	Size         int64         `json:"size"`
	CreatedAt    time.Time     `json:"created_at"`
	LastAccessed time.Time     `json:"last_accessed"`
	TTL          time.Duration `json:"ttl,omitempty"`
	Compressed   bool          `json:"compressed"`
	Checksum     string        `json:"checksum"`
	File         string        `json:"file"`
}

// Disk is the L2 tier: serialized entries on disk under a byte budget, with
// a JSON index persisted on every mutation so the cache survives restarts.
// When the budget would be exceeded the oldest quarter of entries (by last
// access) is removed before the write; if that is not enough the put fails
// with a capacity error and nothing is written.
type Disk struct {
	mu        sync.Mutex
	directory string
	indexPath string
	maxBytes  int64
	curBytes  int64
	compress  bool
	index     map[string]*diskItem
	monitor   types.StatsRecorder
	logger    *slog.Logger

	stopCh chan struct{}
	closed bool

	now func() time.Time
}

// NewDisk creates the L2 tier, loading any index left by a previous run.
// Index entries whose data file has gone missing are dropped.
func NewDisk(cfg DiskConfig, monitor types.StatsRecorder, logger *slog.Logger) (*Disk, error) {
	if cfg.Directory == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "disk tier cache_dir is required")
	}
	if cfg.MaxSizeMB <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig,
			"disk tier max_size_mb must be positive, got %d", cfg.MaxSizeMB)
	}
	if cfg.IndexFile == "" {
		cfg.IndexFile = defaultIndexFile
	}

	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, "create cache directory", err).WithComponent(DiskName)
	}

	if monitor == nil {
		monitor = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Disk{
		directory: cfg.Directory,
		indexPath: filepath.Join(cfg.Directory, cfg.IndexFile),
		maxBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		compress:  cfg.Compression,
		index:     make(map[string]*diskItem),
		monitor:   monitor,
		logger:    logger.With("component", DiskName),
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}

	if err := d.loadIndex(); err != nil {
		return nil, err
	}

	if cfg.CleanupInterval > 0 {
		go d.sweepExpired(cfg.CleanupInterval)
	}

	return d, nil
}

// Name returns the tier identifier.
func (d *Disk) Name() string { return DiskName }

// Get reads and deserializes the entry for key. Expired entries and
// index/data mismatches are cleaned up and reported as a miss.
func (d *Disk) Get(ctx context.Context, key string) (*types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeOperationTimeout, "get canceled", err).WithComponent(DiskName)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New(errors.ErrCodeClosed, "disk tier closed").WithComponent(DiskName)
	}

	item, ok := d.index[key]
	if !ok {
		return nil, errors.NotFound(key)
	}

	now := d.now()
	if expired(item, now) {
		d.dropLocked(key, item)
		d.persistIndex()
		return nil, errors.NotFound(key)
	}

	entry, err := d.readEntry(item)
	if err != nil {
		// Index and data disagree: prefer treating the key as absent.
		d.logger.Warn("unreadable cache file, dropping entry", "key", key, "error", err)
		d.dropLocked(key, item)
		d.persistIndex()
		return nil, errors.NotFound(key)
	}

	entry.Touch(now)
	item.LastAccessed = now
	d.persistIndex()

	return entry, nil
}

// Put serializes, optionally compresses, and stores the entry. The byte
// budget is checked before anything is written; a put that cannot fit even
// after cleanup fails without partial writes.
func (d *Disk) Put(ctx context.Context, key string, entry *types.Entry) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeOperationTimeout, "put canceled", err).WithComponent(DiskName)
	}

	stored := entry.Clone()
	stored.Compressed = d.compress
	data, err := encodeEntry(stored, d.compress)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSerialization, "encode entry", err).
			WithComponent(DiskName).WithContext("key", key)
	}
	size := int64(len(data))

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New(errors.ErrCodeClosed, "disk tier closed").WithComponent(DiskName)
	}

	var replaced int64
	if old, ok := d.index[key]; ok {
		replaced = old.Size
	}

	if d.curBytes-replaced+size > d.maxBytes {
		d.cleanupOldest()
		if old, ok := d.index[key]; ok {
			replaced = old.Size
		} else {
			replaced = 0
		}
		if d.curBytes-replaced+size > d.maxBytes {
			return errors.Newf(errors.ErrCodeCapacityExceeded,
				"entry of %d bytes does not fit budget of %d bytes", size, d.maxBytes).
				WithComponent(DiskName).WithContext("key", key)
		}
	}

	file := d.dataFile(key)
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeIO, "write cache file", err).
			WithComponent(DiskName).WithContext("key", key)
	}

	if old, ok := d.index[key]; ok {
		d.curBytes -= old.Size
	}
	d.index[key] = &diskItem{
		Size:         size,
		CreatedAt:    stored.CreatedAt,
		LastAccessed: stored.LastAccessed,
		TTL:          stored.TTL,
		Compressed:   d.compress,
		Checksum:     checksum(data),
		File:         file,
	}
	d.curBytes += size
	d.persistIndex()

	return nil
}

// Remove deletes the entry's data file and index record.
func (d *Disk) Remove(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.Wrap(errors.ErrCodeOperationTimeout, "remove canceled", err).WithComponent(DiskName)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, errors.New(errors.ErrCodeClosed, "disk tier closed").WithComponent(DiskName)
	}

	item, ok := d.index[key]
	if !ok {
		return false, nil
	}

	d.dropLocked(key, item)
	d.persistIndex()
	return true, nil
}

// Clear removes every data file and resets the index.
func (d *Disk) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeOperationTimeout, "clear canceled", err).WithComponent(DiskName)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New(errors.ErrCodeClosed, "disk tier closed").WithComponent(DiskName)
	}

	for _, item := range d.index {
		if err := os.Remove(item.File); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("remove cache file", "file", item.File, "error", err)
		}
	}
	d.index = make(map[string]*diskItem)
	d.curBytes = 0
	d.persistIndex()
	return nil
}

// Len returns the indexed entry count.
func (d *Disk) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.index)
}

// Bytes returns the summed on-disk size of indexed entries.
func (d *Disk) Bytes() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.curBytes
}

// Close stops the background sweeper and writes a final index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	close(d.stopCh)
	return d.saveIndex()
}

// dropLocked removes one entry's file and index record. Caller holds d.mu.
func (d *Disk) dropLocked(key string, item *diskItem) {
	if err := os.Remove(item.File); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("remove cache file", "file", item.File, "error", err)
	}
	delete(d.index, key)
	d.curBytes -= item.Size
}

// cleanupOldest removes the oldest 25% of entries by last access time.
// Caller holds d.mu.
func (d *Disk) cleanupOldest() {
	if len(d.index) == 0 {
		return
	}

	type aged struct {
		key  string
		item *diskItem
	}
	items := make([]aged, 0, len(d.index))
	for key, item := range d.index {
		items = append(items, aged{key, item})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].item.LastAccessed.Before(items[j].item.LastAccessed)
	})

	victims := (len(items) + 3) / 4
	for _, a := range items[:victims] {
		d.dropLocked(a.key, a.item)
		d.monitor.RecordEviction(DiskName)
	}
	d.logger.Debug("disk cleanup removed oldest entries", "removed", victims, "bytes", d.curBytes)
}

func (d *Disk) dataFile(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.directory, fmt.Sprintf("%x.cache", sum[:8]))
}

// persistIndex writes the index and reports the new size; index write
// failures are logged, not propagated, so the tier stays usable.
// Caller holds d.mu.
func (d *Disk) persistIndex() {
	if err := d.saveIndex(); err != nil {
		d.logger.Error("persist index", "error", err)
	}
	d.monitor.UpdateSize(DiskName, len(d.index), d.curBytes)
}

// saveIndex writes the index atomically via a temp file. Caller holds d.mu.
func (d *Disk) saveIndex() error {
	tmp := d.indexPath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, "create index temp file", err).WithComponent(DiskName)
	}

	if err := json.NewEncoder(file).Encode(d.index); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeSerialization, "encode index", err).WithComponent(DiskName)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeIO, "close index temp file", err).WithComponent(DiskName)
	}

	if err := os.Rename(tmp, d.indexPath); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeIO, "replace index file", err).WithComponent(DiskName)
	}
	return nil
}

func (d *Disk) loadIndex() error {
	file, err := os.Open(d.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeIO, "open index file", err).WithComponent(DiskName)
	}
	defer func() { _ = file.Close() }()

	var items map[string]*diskItem
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		// A corrupt index means starting cold, not failing startup.
		d.logger.Warn("corrupt cache index, starting empty", "error", err)
		return nil
	}

	for key, item := range items {
		if _, err := os.Stat(item.File); os.IsNotExist(err) {
			continue
		}
		d.index[key] = item
		d.curBytes += item.Size
	}
	d.monitor.UpdateSize(DiskName, len(d.index), d.curBytes)
	return nil
}

func (d *Disk) readEntry(item *diskItem) (*types.Entry, error) {
	data, err := os.ReadFile(item.File)
	if err != nil {
		return nil, err
	}
	if checksum(data) != item.Checksum {
		return nil, fmt.Errorf("checksum mismatch for %s", item.File)
	}
	entry, err := decodeEntry(data, item.Compressed)
	if err != nil {
		return nil, err
	}
	// The data file is immutable; access metadata lives in the index.
	entry.LastAccessed = item.LastAccessed
	return entry, nil
}

func (d *Disk) sweepExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.mu.Lock()
			if d.closed {
				d.mu.Unlock()
				return
			}
			now := d.now()
			removed := 0
			for key, item := range d.index {
				if expired(item, now) {
					d.dropLocked(key, item)
					removed++
				}
			}
			if removed > 0 {
				d.persistIndex()
				d.logger.Debug("swept expired entries", "removed", removed)
			}
			d.mu.Unlock()
		}
	}
}

func expired(item *diskItem, now time.Time) bool {
	if item.TTL <= 0 {
		return false
	}
	return now.Sub(item.CreatedAt) > item.TTL
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// encodeEntry serializes an entry to its stored form, gzip-compressing the
// serialized bytes when compress is set.
func encodeEntry(entry *types.Entry, compress bool) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	if !compress {
		return raw, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEntry reverses encodeEntry.
func decodeEntry(data []byte, compressed bool) (*types.Entry, error) {
	raw := data
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, err
		}
		if err := zr.Close(); err != nil {
			return nil, err
		}
	}

	var entry types.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
