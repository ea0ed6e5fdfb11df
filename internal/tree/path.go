package tree

import (
	"fmt"
	"strings"
)

// Root describes one top-level branch of the tree
type Root struct {
	// Depth is the number of leading segments naming a collection
	Depth int
	// Index is the child field kept in a sorted index, if any
	Index string
}

// Layout is the fixed shape of the arcade tree
var Layout = map[string]Root{
	"users":          {Depth: 1},
	"usernames":      {Depth: 1},
	"leaderboards":   {Depth: 2, Index: "score"},
	"friends":        {Depth: 2},
	"friendRequests": {Depth: 2},
	"notifications":  {Depth: 2, Index: "timestamp"},
	"chats":          {Depth: 1},
	"userChats":      {Depth: 2},
	"messages":       {Depth: 2, Index: "timestamp"},
}

// Path addresses a child document, or a field inside one
type Path struct {
	Collection string
	Key        string
	Field      []string
}

// String returns the slash-separated form of the path
func (p Path) String() string {
	parts := append([]string{p.Collection, p.Key}, p.Field...)
	return strings.Join(parts, "/")
}

// Index returns the indexed child field of the path's collection
func (p Path) Index() string {
	return Layout[rootOf(p.Collection)].Index
}

// Join builds a slash-separated path from segments
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Parse splits a path into collection, child key and field segments
func Parse(raw string) (Path, error) {
	segments, root, err := split(raw)
	if err != nil {
		return Path{}, err
	}
	if len(segments) <= root.Depth {
		return Path{}, fmt.Errorf("%w: %q does not name a child", ErrInvalidPath, raw)
	}
	return Path{
		Collection: strings.Join(segments[:root.Depth], "/"),
		Key:        segments[root.Depth],
		Field:      segments[root.Depth+1:],
	}, nil
}

// ParseCollection validates a path naming a whole collection
func ParseCollection(raw string) (string, error) {
	segments, root, err := split(raw)
	if err != nil {
		return "", err
	}
	if len(segments) != root.Depth {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, raw)
	}
	return strings.Join(segments, "/"), nil
}

// IndexOf returns the indexed field of a collection, if any
func IndexOf(collection string) string {
	return Layout[rootOf(collection)].Index
}

func split(raw string) ([]string, Root, error) {
	segments := strings.Split(strings.Trim(raw, "/"), "/")
	for _, s := range segments {
		if s == "" {
			return nil, Root{}, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, raw)
		}
	}
	root, ok := Layout[segments[0]]
	if !ok {
		return nil, Root{}, fmt.Errorf("%w: unknown root %q", ErrInvalidPath, segments[0])
	}
	return segments, root, nil
}

func rootOf(collection string) string {
	root, _, _ := strings.Cut(collection, "/")
	return root
}
