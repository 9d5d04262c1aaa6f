package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"home-dispatch/internal/domain"
)

// settleDelay gives writers a moment to finish a file before it is read.
const settleDelay = 150 * time.Millisecond

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".webm": true,
	".ogg":  true,
}

// FileSource watches a drop directory. Audio files are returned as
// recordings; .txt files are returned as text commands. Consumed files are
// renamed with a .processed suffix.
//
// Directory events wake the source early; the poll interval stays as a
// fallback for filesystems where fsnotify is unavailable.
type FileSource struct {
	dir       string
	interval  time.Duration
	processed map[string]bool
	watcher   *fsnotify.Watcher
	mu        sync.Mutex
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{
		dir:       dir,
		interval:  500 * time.Millisecond,
		processed: make(map[string]bool),
	}
}

// WithPollInterval overrides how often the directory is scanned.
func (f *FileSource) WithPollInterval(d time.Duration) *FileSource {
	if d > 0 {
		f.interval = d
	}
	return f
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Start(_ context.Context) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		return nil
	}
	f.watcher = watcher
	return nil
}

func (f *FileSource) Stop() error {
	if f.watcher == nil {
		return nil
	}
	err := f.watcher.Close()
	f.watcher = nil
	return err
}

// Watching reports whether directory events are delivered, as opposed to
// polling only.
func (f *FileSource) Watching() bool {
	return f.watcher != nil
}

func (f *FileSource) NextCommand(ctx context.Context) ([]byte, error) {
	if data, err := f.checkForNewFile(); err != nil || data != nil {
		return data, err
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if f.watcher != nil {
		events = f.watcher.Events
		watchErrs = f.watcher.Errors
	}
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				settle = time.After(settleDelay)
			}
			continue
		case _, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			}
			continue
		case <-settle:
			settle = nil
		case <-ticker.C:
		}

		data, err := f.checkForNewFile()
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}
}

func (f *FileSource) checkForNewFile() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("reading dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		isText := ext == ".txt"
		if !isText && !audioExtensions[ext] {
			continue
		}

		path := filepath.Join(f.dir, entry.Name())
		if f.processed[path] {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", path, err)
		}

		f.processed[path] = true
		if err := os.Rename(path, path+".processed"); err != nil {
			return nil, fmt.Errorf("marking %s processed: %w", path, err)
		}

		if isText {
			text := strings.TrimSpace(string(data))
			if text == "" {
				continue
			}
			return []byte(domain.TextCommandPrefix + text), nil
		}
		return data, nil
	}

	return nil, nil
}
