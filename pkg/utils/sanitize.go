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

import "encoding/json"

// SanitizeForJSON converts an arbitrary value into a JSON-serializable
// shape for persistence. Maps and slices are walked recursively; structs
// survive as maps via a marshal round trip; leaves that cannot be
// serialized (functions, channels) become nil.
func SanitizeForJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t

	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = SanitizeForJSON(e)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = SanitizeForJSON(e)
		}
		return out

	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var out interface{}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil
		}
		return out
	}
}
