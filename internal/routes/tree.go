// Package routes describes the RNAget REST resource hierarchy and which
// function serves each path.
package routes

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicatePathPart is returned when two siblings share a path part
	ErrDuplicatePathPart = errors.New("duplicate path part")
	// ErrDuplicateHandler is returned when a handler name is bound twice
	ErrDuplicateHandler = errors.New("duplicate handler name")
	// ErrEmptyPathPart is returned for a node without a path part
	ErrEmptyPathPart = errors.New("empty path part")
)

// Node is one path segment. An empty Handler means the segment only
// groups its children and serves no requests itself.
type Node struct {
	PathPart string
	Handler  string
	Children Tree
}

// HasHandler reports whether the node binds a function
func (n Node) HasHandler() bool {
	return n.Handler != ""
}

// Tree is an ordered list of sibling nodes
type Tree []Node

// Join appends a path part to a parent path
func Join(parent, part string) string {
	return strings.TrimSuffix(parent, "/") + "/" + part
}

// Walk visits every node depth first in insertion order. The path passed
// to fn is the full resource path of the node, e.g. /expressions/ticket.
func (t Tree) Walk(fn func(path string, n Node) error) error {
	return t.walk("/", fn)
}

func (t Tree) walk(parent string, fn func(path string, n Node) error) error {
	for _, n := range t {
		path := Join(parent, n.PathPart)
		if err := fn(path, n); err != nil {
			return err
		}
		if err := n.Children.walk(path, fn); err != nil {
			return err
		}
	}
	return nil
}

// HandlerNames returns the distinct handler names in walk order
func (t Tree) HandlerNames() []string {
	seen := make(map[string]bool)
	var names []string
	_ = t.Walk(func(_ string, n Node) error {
		if n.HasHandler() && !seen[n.Handler] {
			seen[n.Handler] = true
			names = append(names, n.Handler)
		}
		return nil
	})
	return names
}

// Paths returns every resource path mapped to its handler name ("" when
// the path serves nothing)
func (t Tree) Paths() map[string]string {
	paths := make(map[string]string)
	_ = t.Walk(func(path string, n Node) error {
		paths[path] = n.Handler
		return nil
	})
	return paths
}

// Validate checks that siblings have distinct, non-empty path parts and
// that no handler name is bound more than once.
func (t Tree) Validate() error {
	handlers := make(map[string]string)
	return t.validate("/", handlers)
}

func (t Tree) validate(parent string, handlers map[string]string) error {
	siblings := make(map[string]bool, len(t))
	for _, n := range t {
		if n.PathPart == "" {
			return fmt.Errorf("%w under %s", ErrEmptyPathPart, parent)
		}
		if siblings[n.PathPart] {
			return fmt.Errorf("%w %q under %s", ErrDuplicatePathPart, n.PathPart, parent)
		}
		siblings[n.PathPart] = true

		path := Join(parent, n.PathPart)
		if n.HasHandler() {
			if first, ok := handlers[n.Handler]; ok {
				return fmt.Errorf("%w %q at %s (first bound at %s)", ErrDuplicateHandler, n.Handler, path, first)
			}
			handlers[n.Handler] = path
		}
		if err := n.Children.validate(path, handlers); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint returns a stable digest of the tree shape and bindings. It
// changes whenever a path or handler binding changes.
func (t Tree) Fingerprint() string {
	h := sha256.New()
	_ = t.Walk(func(path string, n Node) error {
		fmt.Fprintf(h, "%s=%s\n", path, n.Handler)
		return nil
	})
	return hex.EncodeToString(h.Sum(nil))
}
