package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"goflare.io/gamecompat/internal/models"
	"goflare.io/gamecompat/internal/utils"
	"goflare.io/gamecompat/pkg/serialization"
)

const (
	suffixStem    = ".cache."
	tempPrefix    = ".tmp-"
	dirPerm       = 0o755
	filterFPRate  = 0.01
	defaultExpect = 10000
)

// File stores one file per key under a directory so entries survive process
// restarts. Files are named <key>.cache.<codec>, e.g. proton_570.cache.json. Keys are sanitized into file names; keys that differ only in
// characters replaced by SanitizeFileName share a file.
type File struct {
	mu      sync.Mutex
	fs      billy.Filesystem
	dir     string
	codec   serialization.Codec
	suffix  string
	filter  *bloom.BloomFilter
	expect  uint
	metrics *models.Metrics
	logger  *zap.Logger
}

// FileOption configures a File store.
type FileOption func(*File)

// WithCodec sets the codec used for entry records.
func WithCodec(c serialization.Codec) FileOption {
	return func(f *File) {
		f.codec = c
	}
}

// WithExpectedItems sizes the in-memory presence filter.
func WithExpectedItems(n uint) FileOption {
	return func(f *File) {
		if n > 0 {
			f.expect = n
		}
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(logger *zap.Logger) FileOption {
	return func(f *File) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFile creates a File store rooted at dir on the local disk, creating the
// directory if it does not exist.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return NewFileOn(osfs.New("/"), abs, opts...)
}

// NewFileOn creates a File store rooted at dir inside fsys.
func NewFileOn(fsys billy.Filesystem, dir string, opts ...FileOption) (*File, error) {
	if fsys == nil {
		return nil, errors.New("filesystem is required")
	}
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}

	f := &File{
		fs:      fsys,
		dir:     dir,
		codec:   serialization.JSON,
		expect:  defaultExpect,
		metrics: models.NewMetrics(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.suffix = suffixStem + f.codec.Name

	if err := fsys.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	f.filter = bloom.NewWithEstimates(f.expect, filterFPRate)
	if err := f.seedFilter(); err != nil {
		return nil, fmt.Errorf("failed to scan cache directory %s: %w", dir, err)
	}

	return f, nil
}

// seedFilter marks every key already on disk as possibly present.
func (f *File) seedFilter() error {
	infos, err := f.fs.ReadDir(f.dir)
	if err != nil {
		return err
	}
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, f.suffix) {
			continue
		}
		f.filter.AddString(strings.TrimSuffix(name, f.suffix))
	}
	return nil
}

func (f *File) path(key string) (string, string) {
	name := utils.SanitizeFileName(key)
	return name, f.fs.Join(f.dir, name+f.suffix)
}

func (f *File) TryGet(key string, ttl time.Duration) ([]byte, bool) {
	if key == "" {
		return nil, false
	}
	name, path := f.path(key)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.filter.TestString(name) {
		f.metrics.Misses.Inc()
		return nil, false
	}

	raw, err := util.ReadFile(f.fs, path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Debug("Failed to read cache file", zap.String("key", key), zap.Error(err))
		}
		f.metrics.Misses.Inc()
		return nil, false
	}

	var entry models.Entry
	if err := f.codec.Unmarshal(raw, &entry); err != nil {
		f.logger.Debug("Discarding unreadable cache file", zap.String("key", key), zap.Error(err))
		f.remove(path)
		f.metrics.Misses.Inc()
		return nil, false
	}

	if len(entry.Data) == 0 || !entry.IsFresh(ttl) {
		f.remove(path)
		f.metrics.Evictions.Inc()
		f.metrics.Misses.Inc()
		f.logger.Debug("Evicted stale cache file", zap.String("key", key), zap.Duration("age", entry.Age()))
		return nil, false
	}

	f.metrics.Hits.Inc()
	return entry.Bytes(), true
}

func (f *File) Set(key string, data []byte) {
	if key == "" || len(data) == 0 {
		return
	}
	name, path := f.path(key)

	raw, err := f.codec.Marshal(models.NewEntry(data))
	if err != nil {
		f.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		f.metrics.Dropped.Inc()
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeAtomic(path, raw); err != nil {
		f.logger.Warn("Failed to write cache file", zap.String("key", key), zap.Error(err))
		f.metrics.Dropped.Inc()
		return
	}
	f.filter.AddString(name)
	f.metrics.Writes.Inc()
}

// writeAtomic writes raw to a temporary file and renames it over path.
func (f *File) writeAtomic(path string, raw []byte) (err error) {
	tmp, err := util.TempFile(f.fs, f.dir, tempPrefix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return f.fs.Rename(tmpName, path)
}

func (f *File) remove(path string) {
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Debug("Failed to remove cache file", zap.String("path", path), zap.Error(err))
	}
}

// Clear removes every cache file in the directory. Other files are left alone.
func (f *File) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	infos, err := f.fs.ReadDir(f.dir)
	if err != nil {
		f.logger.Warn("Failed to list cache directory", zap.String("dir", f.dir), zap.Error(err))
		return
	}
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !(strings.HasSuffix(name, f.suffix) || strings.HasPrefix(name, tempPrefix)) {
			continue
		}
		f.remove(f.fs.Join(f.dir, name))
	}
	f.filter.ClearAll()
}

func (f *File) Stats() models.Snapshot {
	return f.metrics.Snapshot()
}

// Dir returns the directory holding the cache files.
func (f *File) Dir() string {
	return f.dir
}
