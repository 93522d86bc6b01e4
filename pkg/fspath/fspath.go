// Copyright 2024 The CNFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fspath provides an immutable, normalized representation of
// absolute filesystem paths.
//
// A Path is a non-empty sequence of name components whose first element is
// the root sentinel "/". Normalization happens at construction: empty and
// "." components are dropped, ".." pops the last non-root component (and is
// a no-op at root), and adjacent separators collapse. Relative inputs are
// rejected.
package fspath

import (
	"strings"

	"github.com/caozhanhao/cnfs/pkg/fserr"
)

// root is the sentinel component that begins every Path.
const root = "/"

// Path is an absolute, normalized path. The zero value is invalid; use
// Parse or Root to obtain one. Paths are immutable values and may be copied
// freely.
type Path struct {
	names []string
}

// Root returns the path of the namespace root.
func Root() Path {
	return Path{names: []string{root}}
}

// Parse normalizes s into a Path. Only absolute inputs are accepted;
// anything else fails with fserr.ErrInvalidPath.
func Parse(s string) (Path, error) {
	if !strings.HasPrefix(s, "/") {
		return Path{}, fserr.ErrInvalidPath
	}
	var names []string
	for _, part := range strings.Split(s, "/") {
		switch part {
		case "", ".":
		case "..":
			// ".." at root is a no-op.
			if len(names) > 1 {
				names = names[:len(names)-1]
			}
		default:
			if len(names) == 0 {
				names = append(names, root)
			}
			names = append(names, part)
		}
	}
	if len(names) == 0 {
		names = append(names, root)
	}
	return Path{names: names}, nil
}

// MustParse is Parse but panics on malformed input. Intended for
// compile-time-constant paths and tests.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic("fspath: " + err.Error() + ": " + s)
	}
	return p
}

// FromComponents builds a Path directly from a component slice that already
// satisfies the Path invariants. The slice is copied.
func FromComponents(names []string) Path {
	out := make([]string, len(names))
	copy(out, names)
	return Path{names: out}
}

// Len returns the number of components, counting the root sentinel. The
// zero Path has length 0; every parsed Path has length >= 1.
func (p Path) Len() int {
	return len(p.names)
}

// IsRoot reports whether p is the namespace root.
func (p Path) IsRoot() bool {
	return len(p.names) == 1
}

// Component returns the i-th component. Component(0) is the root sentinel.
func (p Path) Component(i int) string {
	return p.names[i]
}

// Basename returns the final component. For the root path this is the root
// sentinel itself.
func (p Path) Basename() string {
	return p.names[len(p.names)-1]
}

// Prefix returns the path formed by the first n components of p.
func (p Path) Prefix(n int) Path {
	return Path{names: p.names[:n]}
}

// Components returns the component sequence. Callers must not mutate the
// returned slice.
func (p Path) Components() []string {
	return p.names
}

// Parent returns the path one component shorter than p. The second return
// is false exactly when p is the root (or the zero Path).
func (p Path) Parent() (Path, bool) {
	if len(p.names) < 2 {
		return Path{}, false
	}
	return Path{names: p.names[:len(p.names)-1]}, true
}

// HasPrefix reports whether q is a component-wise prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q.names) > len(p.names) {
		return false
	}
	for i, name := range q.names {
		if p.names[i] != name {
			return false
		}
	}
	return true
}

// Equal reports component-wise equality.
func (p Path) Equal(q Path) bool {
	if len(p.names) != len(q.names) {
		return false
	}
	for i, name := range p.names {
		if q.names[i] != name {
			return false
		}
	}
	return true
}

// Compare orders paths lexicographically over their components. It returns
// -1, 0, or 1. A path always orders before its own extensions.
func (p Path) Compare(q Path) int {
	n := len(p.names)
	if len(q.names) < n {
		n = len(q.names)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(p.names[i], q.names[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(p.names) < len(q.names):
		return -1
	case len(p.names) > len(q.names):
		return 1
	}
	return 0
}

// String serializes p, joining components with "/". The root path yields
// "/".
func (p Path) String() string {
	if len(p.names) == 0 {
		return ""
	}
	if len(p.names) == 1 {
		return root
	}
	return root + strings.Join(p.names[1:], "/")
}
