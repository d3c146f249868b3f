// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, AtomicWrite(path, []byte("first"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	// Second write takes a backup of the previous content.
	require.NoError(t, AtomicWrite(path, []byte("second"), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "first", string(backup))

	// No stray temp files remain.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAtomicWrite_CreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "state.json")
	require.NoError(t, AtomicWrite(path, []byte("x"), 0o644))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestDeepMerge(t *testing.T) {
	base := map[string]interface{}{
		"orchestrator": map[string]interface{}{"module": "loop-basic"},
		"context": map[string]interface{}{
			"module": "context-simple",
			"config": map[string]interface{}{"max_tokens": 100000},
		},
	}
	overlay := map[string]interface{}{
		"context": map[string]interface{}{
			"config": map[string]interface{}{"max_tokens": 200000, "auto_compact": true},
		},
	}

	// S1: deep merge of session dicts.
	got := DeepMerge(base, overlay)

	orch := got["orchestrator"].(map[string]interface{})
	assert.Equal(t, "loop-basic", orch["module"])

	ctx := got["context"].(map[string]interface{})
	assert.Equal(t, "context-simple", ctx["module"])

	cfg := ctx["config"].(map[string]interface{})
	assert.Equal(t, 200000, cfg["max_tokens"])
	assert.Equal(t, true, cfg["auto_compact"])

	// Inputs are not mutated.
	baseCfg := base["context"].(map[string]interface{})["config"].(map[string]interface{})
	assert.Equal(t, 100000, baseCfg["max_tokens"])
}

func TestDeepMerge_ListsReplaced(t *testing.T) {
	base := map[string]interface{}{"tags": []interface{}{"a", "b"}}
	overlay := map[string]interface{}{"tags": []interface{}{"c"}}
	got := DeepMerge(base, overlay)
	assert.Equal(t, []interface{}{"c"}, got["tags"])
}

func TestDeepMerge_NilInputs(t *testing.T) {
	assert.Nil(t, DeepMerge(nil, nil))
	got := DeepMerge(nil, map[string]interface{}{"a": 1})
	assert.Equal(t, 1, got["a"])
	got = DeepMerge(map[string]interface{}{"a": 1}, nil)
	assert.Equal(t, 1, got["a"])
}

type dictLike struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSanitizeForJSON(t *testing.T) {
	input := map[string]interface{}{
		"text":   "hello",
		"n":      42,
		"nested": map[string]interface{}{"fn": func() {}},
		"list":   []interface{}{1, "two", make(chan int)},
		"struct": dictLike{Name: "x", Count: 3},
	}

	got := SanitizeForJSON(input)

	// The whole result is JSON-serializable.
	_, err := json.Marshal(got)
	require.NoError(t, err)

	m := got.(map[string]interface{})
	assert.Equal(t, "hello", m["text"])
	assert.Nil(t, m["nested"].(map[string]interface{})["fn"])
	assert.Nil(t, m["list"].([]interface{})[2])

	// Objects with a dict representation survive as dicts.
	s := m["struct"].(map[string]interface{})
	assert.Equal(t, "x", s["name"])
	assert.Equal(t, float64(3), s["count"])
}
