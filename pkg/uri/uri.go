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

// Package uri parses module and bundle source URIs into structured form.
//
// Accepted forms:
//
//	git+https://host/path[@ref][#subdirectory=sub]
//	zip+https://host/archive.zip[#subdirectory=sub]
//	zip+file:///abs/archive.zip
//	file:///abs/path
//	https://host/path[#subdirectory=sub]
//	/abs/path  ./rel/path  ../rel/path  ~/home/path
//	pkg  pkg/subpath
package uri

import (
	"fmt"
	"net/url"
	"strings"
)

// Schemes produced by Parse.
const (
	SchemeFile    = "file"
	SchemePackage = "package"
)

// DefaultGitRef is assumed when a git URI carries no @ref.
const DefaultGitRef = "main"

// Parsed is the structured form of a source URI.
type Parsed struct {
	// Scheme is one of "git+https", "git+http", "git+ssh", "zip+https",
	// "zip+http", "zip+file", "https", "http", "file", "package".
	Scheme string

	// Host is the remote host, empty for local forms.
	Host string

	// Path is the repository/archive/file path, or the package name for
	// the bare form.
	Path string

	// Ref is the git ref (branch, tag, or SHA); only for git URIs.
	// Branches may contain "/".
	Ref string

	// Subpath is the #subdirectory= fragment, or the trailing path of a
	// bare "pkg/subpath" token.
	Subpath string

	// Raw is the original input.
	Raw string
}

// IsGit reports whether the URI uses a git+ scheme.
func (p *Parsed) IsGit() bool { return strings.HasPrefix(p.Scheme, "git+") }

// IsZip reports whether the URI uses a zip+ scheme.
func (p *Parsed) IsZip() bool { return strings.HasPrefix(p.Scheme, "zip+") }

// IsLocal reports whether the URI refers to the local filesystem.
func (p *Parsed) IsLocal() bool { return p.Scheme == SchemeFile }

// IsPackage reports whether the URI is a bare package reference.
func (p *Parsed) IsPackage() bool { return p.Scheme == SchemePackage }

// IsHTTP reports whether the URI is a plain http(s) URL.
func (p *Parsed) IsHTTP() bool { return p.Scheme == "http" || p.Scheme == "https" }

// RemoteURL reconstructs the fetchable URL for git+/zip+/http forms,
// without the ref or fragment.
func (p *Parsed) RemoteURL() string {
	scheme := p.Scheme
	if i := strings.Index(scheme, "+"); i >= 0 {
		scheme = scheme[i+1:]
	}
	if scheme == SchemeFile {
		return p.Path
	}
	return fmt.Sprintf("%s://%s%s", scheme, p.Host, p.Path)
}

// IsLocalPath reports whether raw looks like a filesystem path rather than
// a URI or package name.
func IsLocalPath(raw string) bool {
	return strings.HasPrefix(raw, "/") ||
		strings.HasPrefix(raw, "./") ||
		strings.HasPrefix(raw, "../") ||
		strings.HasPrefix(raw, "~/") ||
		raw == "." || raw == ".."
}

// splitFragment removes a #subdirectory= fragment from raw.
func splitFragment(raw string) (string, string) {
	idx := strings.Index(raw, "#")
	if idx < 0 {
		return raw, ""
	}
	frag := raw[idx+1:]
	raw = raw[:idx]
	if strings.HasPrefix(frag, "subdirectory=") {
		return raw, strings.TrimPrefix(frag, "subdirectory=")
	}
	return raw, ""
}

// Parse parses a source URI into structured form.
func Parse(raw string) (*Parsed, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty source URI")
	}
	stripped, subpath := splitFragment(raw)

	switch {
	case strings.HasPrefix(stripped, "git+"):
		return parseGit(raw, stripped, subpath)

	case strings.HasPrefix(stripped, "zip+"):
		return parseZip(raw, stripped, subpath)

	case strings.HasPrefix(stripped, "file://"):
		u, err := url.Parse(stripped)
		if err != nil {
			return nil, fmt.Errorf("invalid file URI %q: %w", raw, err)
		}
		return &Parsed{Scheme: SchemeFile, Path: u.Path, Subpath: subpath, Raw: raw}, nil

	case strings.HasPrefix(stripped, "http://"), strings.HasPrefix(stripped, "https://"):
		u, err := url.Parse(stripped)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		return &Parsed{Scheme: u.Scheme, Host: u.Host, Path: u.Path, Subpath: subpath, Raw: raw}, nil

	case IsLocalPath(stripped):
		return &Parsed{Scheme: SchemeFile, Path: stripped, Subpath: subpath, Raw: raw}, nil

	default:
		// Bare package token: "pkg" or "pkg/subpath".
		if strings.Contains(stripped, "://") {
			return nil, fmt.Errorf("unsupported URI scheme in %q", raw)
		}
		name, sub := stripped, subpath
		if i := strings.Index(stripped, "/"); i >= 0 {
			name = stripped[:i]
			sub = stripped[i+1:]
		}
		return &Parsed{Scheme: SchemePackage, Path: name, Subpath: sub, Raw: raw}, nil
	}
}

func parseGit(raw, stripped, subpath string) (*Parsed, error) {
	inner := strings.TrimPrefix(stripped, "git+")
	u, err := url.Parse(inner)
	if err != nil {
		return nil, fmt.Errorf("invalid git URI %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("git URI %q has no host", raw)
	}

	path, ref := u.Path, DefaultGitRef
	// The ref follows the first "@" in the path; branch names may contain "/".
	if i := strings.Index(path, "@"); i >= 0 {
		ref = path[i+1:]
		path = path[:i]
		if ref == "" {
			ref = DefaultGitRef
		}
	}

	return &Parsed{
		Scheme:  "git+" + u.Scheme,
		Host:    u.Host,
		Path:    path,
		Ref:     ref,
		Subpath: subpath,
		Raw:     raw,
	}, nil
}

func parseZip(raw, stripped, subpath string) (*Parsed, error) {
	inner := strings.TrimPrefix(stripped, "zip+")
	u, err := url.Parse(inner)
	if err != nil {
		return nil, fmt.Errorf("invalid zip URI %q: %w", raw, err)
	}
	if u.Scheme != "file" && u.Host == "" {
		return nil, fmt.Errorf("zip URI %q has no host", raw)
	}
	return &Parsed{
		Scheme:  "zip+" + u.Scheme,
		Host:    u.Host,
		Path:    u.Path,
		Subpath: subpath,
		Raw:     raw,
	}, nil
}
