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
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.uber.org/zap"

	"github.com/amplifier-labs/amplifier/pkg/config"
	"github.com/amplifier-labs/amplifier/pkg/uri"
)

var shaRefPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// GitHandler clones git+ sources into cache/<hash>/<ref>. Immutable refs
// (40-hex SHAs) are reused indefinitely; mutable refs can be checked
// against the remote head and re-cloned on update.
type GitHandler struct {
	cacheDir   string
	mirrorHost string
	logger     *zap.Logger
}

// NewGitHandler creates a git source handler rooted at cacheDir. The mirror
// host is taken from the environment (AMPLIFIER_GIT_MIRROR).
func NewGitHandler(cacheDir string) *GitHandler {
	return &GitHandler{
		cacheDir:   cacheDir,
		mirrorHost: config.GitMirrorHost(),
		logger:     zap.L().Named("sources.git"),
	}
}

// CanHandle reports whether the URI uses a git+ scheme.
func (h *GitHandler) CanHandle(p *uri.Parsed) bool {
	return p.IsGit()
}

// IsImmutableRef reports whether ref is a full commit SHA.
func IsImmutableRef(ref string) bool {
	return shaRefPattern.MatchString(ref)
}

// cloneURL returns the fetch URL, applying the mirror rewrite policy: when
// a mirror host is configured, GitHub URLs become
// https://<mirror>/amplifier/<repo>; everything else is preserved.
func (h *GitHandler) cloneURL(p *uri.Parsed) string {
	if h.mirrorHost != "" && p.Host == "github.com" {
		repo := path.Base(strings.TrimSuffix(p.Path, ".git"))
		return fmt.Sprintf("https://%s/amplifier/%s", h.mirrorHost, repo)
	}
	return p.RemoteURL()
}

// refDir maps a ref to a filesystem-safe directory name.
func refDir(ref string) string {
	return strings.ReplaceAll(ref, "/", "-")
}

// entryDir maps a parsed git URI to cache/<hash>/<ref>. The hash covers
// host+path only so all refs of one repository share a parent directory.
func (h *GitHandler) entryDir(p *uri.Parsed) string {
	repoOnly := &uri.Parsed{Scheme: p.Scheme, Host: p.Host, Path: p.Path}
	return filepath.Join(h.cacheDir, CacheKey(repoOnly), refDir(p.Ref))
}

// Resolve clones the repository at the requested ref, reusing the cache
// when present.
func (h *GitHandler) Resolve(ctx context.Context, p *uri.Parsed) (*Resolved, error) {
	dir := h.entryDir(p)

	if _, err := ReadCacheMetadata(dir); err == nil {
		return h.resolved(dir, p)
	}

	if err := h.clone(ctx, p, dir); err != nil {
		return nil, err
	}
	return h.resolved(dir, p)
}

func (h *GitHandler) resolved(dir string, p *uri.Parsed) (*Resolved, error) {
	active := dir
	if p.Subpath != "" {
		active = filepath.Join(dir, p.Subpath)
		if _, err := os.Stat(active); err != nil {
			return nil, &NotFoundError{URI: p.Raw, Cause: fmt.Errorf("subdirectory %q not in repository: %w", p.Subpath, err)}
		}
	}
	return &Resolved{ActivePath: active, SourceRoot: dir}, nil
}

func (h *GitHandler) clone(ctx context.Context, p *uri.Parsed, dir string) error {
	url := h.cloneURL(p)
	h.logger.Info("cloning source",
		zap.String("url", url),
		zap.String("ref", p.Ref),
	)

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	var repo *git.Repository
	var err error
	if IsImmutableRef(p.Ref) {
		// Arbitrary SHAs require full history; clone then detach.
		repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url})
		if err == nil {
			var wt *git.Worktree
			wt, err = repo.Worktree()
			if err == nil {
				err = wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(p.Ref)})
			}
		}
	} else {
		repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           url,
			ReferenceName: plumbing.NewBranchReferenceName(p.Ref),
			SingleBranch:  true,
			Depth:         1,
		})
		if err != nil {
			// The ref may be a tag rather than a branch.
			_ = os.RemoveAll(dir)
			repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
				URL:           url,
				ReferenceName: plumbing.NewTagReferenceName(p.Ref),
				SingleBranch:  true,
				Depth:         1,
			})
		}
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return h.translateCloneError(p, err)
	}

	sha := p.Ref
	if !IsImmutableRef(p.Ref) {
		if head, herr := repo.Head(); herr == nil {
			sha = head.Hash().String()
		} else {
			sha = ""
		}
	}

	return WriteCacheMetadata(dir, &CacheMetadata{
		URL:       url,
		Ref:       p.Ref,
		SHA:       sha,
		CachedAt:  time.Now().UTC(),
		IsMutable: !IsImmutableRef(p.Ref),
	})
}

func (h *GitHandler) translateCloneError(p *uri.Parsed, err error) error {
	if errors.Is(err, git.ErrRepositoryNotExists) ||
		errors.Is(err, plumbing.ErrReferenceNotFound) ||
		strings.Contains(err.Error(), "repository not found") ||
		strings.Contains(err.Error(), "couldn't find remote ref") {
		return &NotFoundError{URI: p.Raw, Cause: err}
	}
	if strings.Contains(err.Error(), "authentication") || strings.Contains(err.Error(), "authorization") {
		return &PermissionDeniedError{URI: p.Raw, Cause: err}
	}
	return &NetworkError{URI: p.Raw, Cause: err}
}

// remoteHead queries the remote for the SHA of the ref without cloning.
func (h *GitHandler) remoteHead(ctx context.Context, p *uri.Parsed) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{h.cloneURL(p)},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return "", &NetworkError{URI: p.Raw, Cause: err}
	}

	branchRef := plumbing.NewBranchReferenceName(p.Ref)
	tagRef := plumbing.NewTagReferenceName(p.Ref)
	for _, ref := range refs {
		if ref.Name() == branchRef || ref.Name() == tagRef {
			return ref.Hash().String(), nil
		}
	}
	return "", &NotFoundError{URI: p.Raw, Cause: fmt.Errorf("ref %q not found on remote", p.Ref)}
}

// Status compares the cached SHA with the remote head for mutable refs.
func (h *GitHandler) Status(ctx context.Context, p *uri.Parsed) (*Status, error) {
	dir := h.entryDir(p)
	meta, err := ReadCacheMetadata(dir)
	if err != nil {
		return nil, &NotFoundError{URI: p.Raw, Cause: err}
	}

	if !meta.IsMutable {
		return &Status{UpToDate: true, CachedSHA: meta.SHA, RemoteSHA: meta.SHA, CachedAt: meta.CachedAt}, nil
	}

	remoteSHA, err := h.remoteHead(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Status{
		UpToDate:  remoteSHA == meta.SHA,
		CachedSHA: meta.SHA,
		RemoteSHA: remoteSHA,
		CachedAt:  meta.CachedAt,
	}, nil
}

// Update discards the cached clone and re-clones.
func (h *GitHandler) Update(ctx context.Context, p *uri.Parsed) (*Resolved, error) {
	dir := h.entryDir(p)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to remove cached clone %s: %w", dir, err)
	}
	if err := h.clone(ctx, p, dir); err != nil {
		return nil, err
	}
	return h.resolved(dir, p)
}
