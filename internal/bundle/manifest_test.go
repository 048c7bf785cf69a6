package bundle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullManifest = `
name: demo
description: A demo bundle.
version: 1.0.0
protocol: mcp
role: server
language: go

variables:
  go_version: "1.23"
  greeting: hello

files:
  - source: go.mod.tmpl
    destination: go.mod
  - source: main.go.tmpl
    destination: main.go
    context:
      entry: true
  - source: tool.go.tmpl
    destination: tools/{{operation_id}}.go
    for_each: operation

directories:
  - docs

hooks:
  pre_generate: go version
  post_generate:
    - ensure-trailing-newline
    - make-scripts-executable
`

func TestParseManifest_Full(t *testing.T) {
	m, err := ParseManifest([]byte(fullManifest))
	require.NoError(t, err)

	assert.Equal(t, "demo", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, "mcp", m.Protocol)
	assert.Equal(t, "server", m.Role)
	assert.Equal(t, "go", m.Language)
	assert.Equal(t, []string{"docs"}, m.Directories)

	require.Len(t, m.Files, 3)
	assert.Equal(t, "go.mod.tmpl", m.Files[0].Source)
	assert.Equal(t, "go.mod", m.Files[0].Destination)
	assert.Empty(t, m.Files[0].ForEach)
	assert.Equal(t, ForEachOperation, m.Files[2].ForEach)

	require.NotNil(t, m.Files[1].Context)
	entry, ok := m.Files[1].Context.Get("entry")
	require.True(t, ok)
	assert.Equal(t, true, entry)

	require.NotNil(t, m.Variables)
	assert.Equal(t, []string{"go_version", "greeting"}, m.Variables.Keys())

	assert.Equal(t, CommandList{"go version"}, m.Hooks.PreGenerate)
	assert.Equal(t, CommandList{"ensure-trailing-newline", "make-scripts-executable"}, m.Hooks.PostGenerate)
}

func TestParseManifest_ScalarHookBecomesSingleton(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: demo
version: 1.0.0
files:
  - source: a.tmpl
    destination: a
hooks:
  post_generate: ensure-trailing-newline
`))
	require.NoError(t, err)
	assert.Equal(t, CommandList{"ensure-trailing-newline"}, m.Hooks.PostGenerate)
	assert.Nil(t, m.Hooks.PreGenerate)
}

func TestParseManifest_EmptyScalarHookIsNone(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: demo
version: 1.0.0
files:
  - source: a.tmpl
    destination: a
hooks:
  pre_generate: ""
`))
	require.NoError(t, err)
	assert.Nil(t, m.Hooks.PreGenerate)
}

func TestParseManifest_HookRejectsMapping(t *testing.T) {
	_, err := ParseManifest([]byte(`
name: demo
version: 1.0.0
files:
  - source: a.tmpl
    destination: a
hooks:
  pre_generate:
    command: go version
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list of commands")
}

func TestParseManifest_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "version: 1.0.0\nfiles:\n  - {source: a.tmpl, destination: a}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing version",
			yaml:    "name: demo\nfiles:\n  - {source: a.tmpl, destination: a}\n",
			wantErr: "version is required",
		},
		{
			name:    "no files",
			yaml:    "name: demo\nversion: 1.0.0\n",
			wantErr: "declares no files",
		},
		{
			name:    "file without source",
			yaml:    "name: demo\nversion: 1.0.0\nfiles:\n  - {destination: a}\n",
			wantErr: "source is required",
		},
		{
			name:    "file without destination",
			yaml:    "name: demo\nversion: 1.0.0\nfiles:\n  - {source: a.tmpl}\n",
			wantErr: "destination is required",
		},
		{
			name:    "unknown for_each",
			yaml:    "name: demo\nversion: 1.0.0\nfiles:\n  - {source: a.tmpl, destination: \"{{operation_id}}.go\", for_each: schema}\n",
			wantErr: "unknown for_each directive",
		},
		{
			name:    "for_each without placeholder",
			yaml:    "name: demo\nversion: 1.0.0\nfiles:\n  - {source: a.tmpl, destination: tool.go, for_each: operation}\n",
			wantErr: "placeholder",
		},
		{
			name:    "duplicate destination",
			yaml:    "name: demo\nversion: 1.0.0\nfiles:\n  - {source: a.tmpl, destination: a}\n  - {source: b.tmpl, destination: a}\n",
			wantErr: "duplicate destination",
		},
		{
			name:    "not yaml",
			yaml:    "::\n  - bad",
			wantErr: "parse manifest",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.yaml))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.wantErr),
				"error %q should contain %q", err.Error(), tc.wantErr)
		})
	}
}
