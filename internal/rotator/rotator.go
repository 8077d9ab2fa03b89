// Package rotator picks the informational file shown on the dashboard.
// The choice is a pure function of the wall clock and the rotation config,
// which is read from disk on every call.
package rotator

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Fallback values used when the rotation config is absent or malformed.
const (
	DefaultFile     = "display-info.md"
	DefaultInterval = 180

	maxInterval = math.MaxInt32
)

// RotationConfig lists the candidate files and how long each is shown.
type RotationConfig struct {
	ActiveFiles             []string `json:"activeFiles"`
	RotationIntervalSeconds int      `json:"rotationIntervalSeconds"`
}

// DefaultConfig returns the fallback rotation config.
func DefaultConfig() RotationConfig {
	return RotationConfig{
		ActiveFiles:             []string{DefaultFile},
		RotationIntervalSeconds: DefaultInterval,
	}
}

// LoadConfig reads the rotation config at path. It always returns a usable
// config: fields that are missing or invalid keep their defaults, and the
// returned error describes what was ignored.
func LoadConfig(path string) (RotationConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read rotation config: %w", err)
	}

	var raw struct {
		ActiveFiles             json.RawMessage `json:"activeFiles"`
		RotationIntervalSeconds json.RawMessage `json:"rotationIntervalSeconds"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse rotation config: %w", err)
	}

	var errs []error
	if len(raw.ActiveFiles) > 0 {
		var files []string
		if err := json.Unmarshal(raw.ActiveFiles, &files); err != nil {
			errs = append(errs, fmt.Errorf("activeFiles: %w", err))
		} else if len(files) > 0 {
			cfg.ActiveFiles = files
		}
	}
	if len(raw.RotationIntervalSeconds) > 0 {
		var interval float64
		if err := json.Unmarshal(raw.RotationIntervalSeconds, &interval); err != nil {
			errs = append(errs, fmt.Errorf("rotationIntervalSeconds: %w", err))
		} else if interval < 1 || interval > maxInterval || interval != math.Trunc(interval) {
			errs = append(errs, fmt.Errorf("rotationIntervalSeconds: must be an integer between 1 and %d, got %v", maxInterval, interval))
		} else {
			cfg.RotationIntervalSeconds = int(interval)
		}
	}
	return cfg, errors.Join(errs...)
}

// SelectIndex returns floor(unix(now) / interval) mod len(files).
func SelectIndex(now time.Time, cfg RotationConfig) int {
	n := int64(len(cfg.ActiveFiles))
	interval := int64(cfg.RotationIntervalSeconds)
	if n == 0 || interval <= 0 {
		return 0
	}
	idx := (now.Unix() / interval) % n
	if idx < 0 {
		idx += n
	}
	return int(idx)
}

// Content is the currently selected file.
type Content struct {
	FileName string
	Body     []byte
	Interval int
}

// MissingFileError reports a configured file that is not present in the
// content directory. Listing holds the names that are present.
type MissingFileError struct {
	Name    string
	Listing []string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Name)
}

// Rotator serves files from a content root.
type Rotator struct {
	root       string
	configPath string
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) { r.now = now }
}

// New creates a Rotator rooted at root, an absolute directory.
func New(root, configPath string, logger *zap.Logger, opts ...Option) *Rotator {
	r := &Rotator{
		root:       filepath.Clean(root),
		configPath: configPath,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config loads the rotation config, logging when defaults were used.
func (r *Rotator) Config() RotationConfig {
	cfg, err := LoadConfig(r.configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debug("No rotation config, using defaults", zap.String("path", r.configPath))
	default:
		r.logger.Warn("Invalid rotation config, using defaults where needed",
			zap.String("path", r.configPath),
			zap.Error(err))
	}
	return cfg
}

// Select returns the file due at the current time. A configured file that
// is absent, or that would resolve outside the content root, yields a
// *MissingFileError.
func (r *Rotator) Select() (Content, error) {
	cfg := r.Config()
	name := cfg.ActiveFiles[SelectIndex(r.now(), cfg)]

	path, ok := r.resolve(name)
	if !ok {
		r.logger.Warn("Rotation file resolves outside the content directory",
			zap.String("file", name),
			zap.String("root", r.root))
		return Content{}, &MissingFileError{Name: name, Listing: r.listing(r.root)}
	}

	// Compare against the directory listing rather than stat'ing the path so
	// that names differing only in hidden characters are reported.
	dir, base := filepath.Split(path)
	listing := r.listing(dir)
	found := false
	for _, entry := range listing {
		if entry == base {
			found = true
			break
		}
	}
	if !found {
		r.logger.Warn("Rotation file does not exist",
			zap.String("file", name),
			zap.String("file_hex", hex.EncodeToString([]byte(name))),
			zap.String("path", path),
			zap.Strings("listing", listing))
		return Content{}, &MissingFileError{Name: name, Listing: listing}
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return Content{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return Content{FileName: name, Body: body, Interval: cfg.RotationIntervalSeconds}, nil
}

// resolve joins name onto the root and rejects anything escaping it.
func (r *Rotator) resolve(name string) (string, bool) {
	if name == "" || filepath.IsAbs(name) {
		return "", false
	}
	path := filepath.Join(r.root, name)
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

// listing returns the names of the regular files in dir.
func (r *Rotator) listing(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.logger.Warn("Failed to list directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}
