// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package plugin

import (
	"errors"
	"fmt"
	goplugin "plugin"
	"sync"

	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

var (
	ErrPluginLoadFailed  = errors.New("plugin: load failed")
	ErrPluginInitFailed  = errors.New("plugin: init failed")
	ErrDescriptorInvalid = errors.New("plugin: descriptor invalid")
)

// entry is what the registry keeps per element name.
type entry struct {
	descriptor Descriptor
	origin     string // shared-library path, or "in-process"
	framework  string // framework version string declared by the plugin
	pluginInfo string // plugin name/authors, free-form, for diagnostics
}

// DuplicatePolicy controls what happens when two elements register
// under the same name.
type DuplicatePolicy int

const (
	// DuplicateWarnKeepLast logs a warning and keeps the later
	// registration, matching the documented last-write-wins default.
	DuplicateWarnKeepLast DuplicatePolicy = iota
	// DuplicateFatal aborts the process on a duplicate name, for
	// deployments that treat it as a packaging error.
	DuplicateFatal
)

// Registry holds every registered element descriptor, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]entry
	metadata *metadata.Registry
	onDup    DuplicatePolicy
}

// NewRegistry returns an empty Registry. md is the process-wide
// metadata-name interning table that RegisterElement seeds from each
// descriptor's declared metadata names.
func NewRegistry(md *metadata.Registry, onDup DuplicatePolicy) *Registry {
	return &Registry{
		entries:  make(map[string]entry),
		metadata: md,
		onDup:    onDup,
	}
}

// Builder is the handle a plugin's init function receives. It collects
// plugin-level identity fields and forwards RegisterElement calls to
// the owning Registry, tagging each with this plugin's origin.
type Builder struct {
	registry  *Registry
	origin    string
	name      string
	framework string
	authors   string
}

func newBuilder(registry *Registry, origin string) *Builder {
	return &Builder{registry: registry, origin: origin}
}

func (b *Builder) SetName(name string) *Builder           { b.name = name; return b }
func (b *Builder) SetFrameworkVersion(v string) *Builder  { b.framework = v; return b }
func (b *Builder) SetAuthors(authors string) *Builder     { b.authors = authors; return b }

// RegisterElement validates and installs one descriptor contributed by
// this plugin.
func (b *Builder) RegisterElement(d Descriptor) error {
	if err := d.Validate(); err != nil {
		dclog.Errorf("plugin %s: %v", b.name, err)
		return err
	}
	for _, name := range d.MetadataNames {
		b.registry.metadata.Intern(name)
	}
	b.registry.install(d.Name, entry{
		descriptor: d,
		origin:     b.origin,
		framework:  b.framework,
		pluginInfo: fmt.Sprintf("%s (%s)", b.name, b.authors),
	})
	return nil
}

func (r *Registry) install(name string, e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		switch r.onDup {
		case DuplicateFatal:
			dclog.Fatalf("plugin: duplicate element name %q (from %s)", name, e.origin)
		default:
			dclog.Warnf("plugin: duplicate element name %q (from %s), keeping the later registration", name, e.origin)
		}
	}
	r.entries[name] = e
}

// InitFunc is the in-process registration entry point: the same shape
// a shared library's PluginInit exports, callable directly by code
// linked into this binary.
type InitFunc func(b *Builder) bool

// RegisterInProcess runs init immediately against a builder tagged
// origin "in-process", recovering from any panic the way a shared
// library's init would be isolated by LoadSharedLibrary.
func (r *Registry) RegisterInProcess(pluginName string, init InitFunc) (err error) {
	b := newBuilder(r, "in-process")
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrPluginInitFailed, pluginName, rec)
			dclog.Errorf("%v", err)
		}
	}()
	if !init(b) {
		return fmt.Errorf("%w: %s returned false", ErrPluginInitFailed, pluginName)
	}
	return nil
}

// LoadSharedLibrary opens a Go shared-object plugin via the standard
// library's dlopen-equivalent loader, looks up the exported symbol
// PluginInit of type func(*Builder) bool, and runs it; a symbol named
// plugin_init is not looked up. The shared
// library is never closed: descriptor function pointers it installed
// remain live for the life of the process.
func (r *Registry) LoadSharedLibrary(path string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: init panicked: %v", ErrPluginInitFailed, path, rec)
			dclog.Errorf("%v", err)
		}
	}()

	p, openErr := goplugin.Open(path)
	if openErr != nil {
		err = fmt.Errorf("%w: %s: %v", ErrPluginLoadFailed, path, openErr)
		dclog.Errorf("%v", err)
		return err
	}
	sym, lookupErr := p.Lookup("PluginInit")
	if lookupErr != nil {
		err = fmt.Errorf("%w: %s: missing PluginInit symbol: %v", ErrPluginLoadFailed, path, lookupErr)
		dclog.Errorf("%v", err)
		return err
	}
	init, ok := sym.(func(*Builder) bool)
	if !ok {
		err = fmt.Errorf("%w: %s: PluginInit has unexpected signature", ErrPluginLoadFailed, path)
		dclog.Errorf("%v", err)
		return err
	}

	b := newBuilder(r, path)
	if !init(b) {
		err = fmt.Errorf("%w: %s: PluginInit returned false", ErrPluginInitFailed, path)
		dclog.Errorf("%v", err)
		return err
	}
	dclog.Infof("plugin: loaded %s from %s", b.name, path)
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.descriptor, ok
}

// Names returns every currently registered element name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
