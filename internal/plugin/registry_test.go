// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/internal/metadata"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
)

func textSourceDescriptor() Descriptor {
	return Descriptor{
		Name:          "textsource",
		Description:   "emits lines of text",
		RecvPorts:     0,
		SendPorts:     1,
		AcceptedTypes: nil,
		ProducedTypes: []msgtype.Type{msgtype.MustParse("mime:text/plain")},
		MetadataNames: []string{"line-number"},
		Callbacks: Callbacks{
			New:  func(string) (Instance, error) { return struct{}{}, nil },
			Next: func(Instance, Pipeline, Receiver) StepResult { return StepResult{Kind: StepClose} },
			Free: func(Instance) {},
		},
	}
}

func TestRegisterInProcessSucceeds(t *testing.T) {
	r := NewRegistry(metadata.NewRegistry(), DuplicateWarnKeepLast)
	err := r.RegisterInProcess("textplugin", func(b *Builder) bool {
		b.SetName("textplugin").SetFrameworkVersion("1.0.0")
		return b.RegisterElement(textSourceDescriptor()) == nil
	})
	require.NoError(t, err)

	d, ok := r.Lookup("textsource")
	require.True(t, ok)
	assert.Equal(t, 1, d.SendPorts)
	assert.Contains(t, r.Names(), "textsource")
}

func TestRegisterInProcessRejectsInvalidDescriptor(t *testing.T) {
	r := NewRegistry(metadata.NewRegistry(), DuplicateWarnKeepLast)
	err := r.RegisterInProcess("bad", func(b *Builder) bool {
		bad := textSourceDescriptor()
		bad.SendPorts = 2 // mismatched against a single ProducedTypes entry
		return b.RegisterElement(bad) == nil
	})
	require.Error(t, err)
	_, ok := r.Lookup("textsource")
	assert.False(t, ok)
}

func TestRegisterInProcessRecoversFromPanic(t *testing.T) {
	r := NewRegistry(metadata.NewRegistry(), DuplicateWarnKeepLast)
	err := r.RegisterInProcess("panicky", func(b *Builder) bool {
		panic("boom")
	})
	require.ErrorIs(t, err, ErrPluginInitFailed)
}

func TestDuplicateNameKeepsLastRegistration(t *testing.T) {
	r := NewRegistry(metadata.NewRegistry(), DuplicateWarnKeepLast)
	first := textSourceDescriptor()
	first.Description = "first"
	second := textSourceDescriptor()
	second.Description = "second"

	require.NoError(t, r.RegisterInProcess("p1", func(b *Builder) bool {
		return b.RegisterElement(first) == nil
	}))
	require.NoError(t, r.RegisterInProcess("p2", func(b *Builder) bool {
		return b.RegisterElement(second) == nil
	}))

	d, ok := r.Lookup("textsource")
	require.True(t, ok)
	assert.Equal(t, "second", d.Description)
}

func TestMetadataNamesInternedOnRegister(t *testing.T) {
	md := metadata.NewRegistry()
	r := NewRegistry(md, DuplicateWarnKeepLast)
	require.NoError(t, r.RegisterInProcess("p", func(b *Builder) bool {
		return b.RegisterElement(textSourceDescriptor()) == nil
	}))
	_, ok := md.Lookup("line-number")
	assert.True(t, ok)
}

func TestLoadSharedLibraryMissingFile(t *testing.T) {
	r := NewRegistry(metadata.NewRegistry(), DuplicateWarnKeepLast)
	err := r.LoadSharedLibrary("/nonexistent/path.so")
	require.ErrorIs(t, err, ErrPluginLoadFailed)
}
