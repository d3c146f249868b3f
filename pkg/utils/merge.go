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
	"dario.cat/mergo"
	"go.uber.org/zap"
)

// DeepCopyMap returns a deep copy of a JSON-shaped map.
func DeepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return DeepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}

// DeepMerge merges overlay into a deep copy of base and returns the result.
// Nested maps merge recursively; scalars and lists from the overlay win.
// Neither input is mutated.
func DeepMerge(base, overlay map[string]interface{}) map[string]interface{} {
	if base == nil && overlay == nil {
		return nil
	}
	dst := DeepCopyMap(base)
	if dst == nil {
		dst = make(map[string]interface{})
	}
	src := DeepCopyMap(overlay)
	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		// mergo only fails on non-map inputs, which the signature rules out.
		zap.L().Warn("deep merge failed", zap.Error(err))
		for k, v := range src {
			dst[k] = v
		}
	}
	return dst
}
