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
package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amplifier-labs/amplifier/pkg/utils"
)

// MetadataFileName is the per-cache-entry metadata record.
const MetadataFileName = ".amplifier_cache_metadata.json"

// CacheMetadata records how a cache entry was materialized.
type CacheMetadata struct {
	URL       string    `json:"url"`
	Ref       string    `json:"ref,omitempty"`
	SHA       string    `json:"sha,omitempty"`
	CachedAt  time.Time `json:"cached_at"`
	IsMutable bool      `json:"is_mutable"`
}

// WriteCacheMetadata persists metadata into dir atomically.
func WriteCacheMetadata(dir string, meta *CacheMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}
	return utils.AtomicWrite(filepath.Join(dir, MetadataFileName), data, 0o644)
}

// ReadCacheMetadata loads the metadata record from dir.
func ReadCacheMetadata(dir string) (*CacheMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read cache metadata in %s: %w", dir, err)
	}
	var meta CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse cache metadata in %s: %w", dir, err)
	}
	return &meta, nil
}
