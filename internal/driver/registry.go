package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the driver catalog: built-in drivers parsed from the
// definition directory plus a replaceable overlay of custom drivers
// supplied by the profile store.
//
// The built-in set is read-only after Load. The custom overlay is
// replaced wholesale by LoadCustom/ClearCustom, never patched in
// place, so concurrent readers always see a consistent catalog.
//
// Label uniqueness: a custom driver with the same label as a built-in
// one overrides it for lookup. Within the overlay, last write wins.
//
// All public methods are thread-safe.
type Registry struct {
	dataDir string

	mu      sync.RWMutex
	builtin []Driver
	custom  []Driver
	byLabel map[string]Driver // combined view, custom overrides built-in

	logger Logger
}

// NewRegistry creates a registry reading definitions from dataDir.
// Call Load before using lookups.
func NewRegistry(dataDir string) *Registry {
	return &Registry{
		dataDir: dataDir,
		byLabel: make(map[string]Driver),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load parses every definition file in the data directory and
// replaces the built-in driver set. Skeleton property files
// (*_sk.xml) are ignored. A malformed file is logged and skipped;
// one bad file never prevents the rest of the catalog from loading.
//
// Load may be called again to re-read the directory. The custom
// overlay is preserved across reloads.
func (r *Registry) Load() error {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return fmt.Errorf("reading driver definitions from %s: %w", r.dataDir, err)
	}

	var builtin []Driver
	var skipped int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".xml") {
			continue
		}
		if strings.HasSuffix(name, "_sk.xml") {
			continue // Skeleton property files, not definitions
		}

		drivers, err := parseDefinitionFile(filepath.Join(r.dataDir, name))
		if err != nil {
			r.logger.Warn("skipping malformed driver definition", "file", name, "error", err)
			skipped++
			continue
		}
		builtin = append(builtin, drivers...)
	}

	sort.SliceStable(builtin, func(i, j int) bool {
		return builtin[i].Label < builtin[j].Label
	})

	r.mu.Lock()
	r.builtin = builtin
	r.rebuildIndexLocked()
	r.mu.Unlock()

	r.logger.Info("driver definitions loaded",
		"dir", r.dataDir, "drivers", len(builtin), "skipped_files", skipped)
	return nil
}

// LoadCustom replaces the custom overlay with the given drivers.
// Each driver is marked Custom. Duplicate labels within the slice
// resolve last-write-wins.
func (r *Registry) LoadCustom(drivers []Driver) {
	custom := make([]Driver, len(drivers))
	for i, d := range drivers {
		d.Custom = true
		custom[i] = d
	}

	r.mu.Lock()
	r.custom = custom
	r.rebuildIndexLocked()
	r.mu.Unlock()

	r.logger.Debug("custom drivers loaded", "count", len(custom))
}

// ClearCustom empties the custom overlay. Built-in drivers shadowed
// by custom labels become visible again.
func (r *Registry) ClearCustom() {
	r.mu.Lock()
	r.custom = nil
	r.rebuildIndexLocked()
	r.mu.Unlock()
}

// ByLabel returns the driver with the given label, custom overlay
// taking precedence over built-in definitions.
// Returns ErrNotFound if no driver matches.
func (r *Registry) ByLabel(label string) (Driver, error) {
	r.mu.RLock()
	d, ok := r.byLabel[label]
	r.mu.RUnlock()

	if !ok {
		return Driver{}, fmt.Errorf("%w: label %q", ErrNotFound, label)
	}
	return d, nil
}

// ByName returns the first driver whose Name matches.
// Returns ErrNotFound if no driver matches.
func (r *Registry) ByName(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.custom {
		if d.Name == name {
			return d, nil
		}
	}
	for _, d := range r.builtin {
		if d.Name == name {
			return d, nil
		}
	}
	return Driver{}, fmt.Errorf("%w: name %q", ErrNotFound, name)
}

// All returns every driver in the combined catalog, sorted by label.
func (r *Registry) All() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Driver, 0, len(r.byLabel))
	for _, d := range r.byLabel {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Label < all[j].Label
	})
	return all
}

// GroupsByFamily returns the catalog grouped by family, each group
// holding driver labels in load order. Used for presentation.
func (r *Registry) GroupsByFamily() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	families := make(map[string][]string)
	seen := make(map[string]bool, len(r.byLabel))

	// Custom overlay first so overridden built-ins group under the
	// custom driver's family. byLabel resolves duplicates within the
	// overlay (last write wins).
	for _, d := range r.custom {
		if seen[d.Label] {
			continue
		}
		seen[d.Label] = true
		eff := r.byLabel[d.Label]
		families[eff.Family] = append(families[eff.Family], eff.Label)
	}
	for _, d := range r.builtin {
		if seen[d.Label] {
			continue
		}
		seen[d.Label] = true
		families[d.Family] = append(families[d.Family], d.Label)
	}

	return families
}

// Families returns the family names present in the catalog, sorted.
func (r *Registry) Families() []string {
	groups := r.GroupsByFamily()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of distinct labels in the catalog.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byLabel)
}

// rebuildIndexLocked rebuilds the combined label index.
// Caller must hold mu for writing.
func (r *Registry) rebuildIndexLocked() {
	index := make(map[string]Driver, len(r.builtin)+len(r.custom))
	for _, d := range r.builtin {
		index[d.Label] = d
	}
	for _, d := range r.custom {
		index[d.Label] = d // Custom overrides built-in; last write wins
	}
	r.byLabel = index
}
