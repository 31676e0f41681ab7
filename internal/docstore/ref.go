package docstore

import (
	"fmt"
	"strings"
)

// CollectionRef addresses a collection: a root name such as "venues" or a
// named sub-collection under a document such as "venues/{id}/jobs".
type CollectionRef struct {
	path string
	err  error
}

// DocRef addresses a single document inside a collection.
type DocRef struct {
	path string
	err  error
}

// Collection returns a reference to a root collection.
func Collection(name string) CollectionRef {
	if err := checkSegment(name); err != nil {
		return CollectionRef{path: name, err: err}
	}
	return CollectionRef{path: name}
}

// ParseDoc parses a slash-separated document path.
func ParseDoc(path string) (DocRef, error) {
	segs := strings.Split(path, "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return DocRef{}, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if err := checkSegment(s); err != nil {
			return DocRef{}, err
		}
	}
	return DocRef{path: path}, nil
}

// ParseCollection parses a slash-separated collection path.
func ParseCollection(path string) (CollectionRef, error) {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 1 {
		return CollectionRef{}, fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if err := checkSegment(s); err != nil {
			return CollectionRef{}, err
		}
	}
	return CollectionRef{path: path}, nil
}

func checkSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.Contains(s, "/") {
		return fmt.Errorf("%w: invalid path segment %q", ErrInvalidPath, s)
	}
	return nil
}

// Doc returns a reference to the document with the given id.
func (c CollectionRef) Doc(id string) DocRef {
	if c.err != nil {
		return DocRef{path: c.path + "/" + id, err: c.err}
	}
	if err := checkSegment(id); err != nil {
		return DocRef{path: c.path + "/" + id, err: err}
	}
	return DocRef{path: c.path + "/" + id}
}

// Path returns the slash-separated path of the collection.
func (c CollectionRef) Path() string { return c.path }

// ID returns the collection's own name (its last path segment).
func (c CollectionRef) ID() string {
	return c.path[strings.LastIndex(c.path, "/")+1:]
}

// Parent returns the document owning the collection. Root collections have
// no parent.
func (c CollectionRef) Parent() (DocRef, bool) {
	i := strings.LastIndex(c.path, "/")
	if i < 0 {
		return DocRef{}, false
	}
	return DocRef{path: c.path[:i], err: c.err}, true
}

// Err reports whether the reference was built from an invalid segment.
func (c CollectionRef) Err() error { return c.err }

func (c CollectionRef) IsZero() bool { return c.path == "" }

func (c CollectionRef) String() string { return c.path }

// Collection returns a reference to a sub-collection of the document.
func (d DocRef) Collection(name string) CollectionRef {
	if d.err != nil {
		return CollectionRef{path: d.path + "/" + name, err: d.err}
	}
	if err := checkSegment(name); err != nil {
		return CollectionRef{path: d.path + "/" + name, err: err}
	}
	return CollectionRef{path: d.path + "/" + name}
}

// Path returns the slash-separated path of the document.
func (d DocRef) Path() string { return d.path }

// ID returns the document id (its last path segment).
func (d DocRef) ID() string {
	return d.path[strings.LastIndex(d.path, "/")+1:]
}

// Parent returns the collection containing the document.
func (d DocRef) Parent() CollectionRef {
	i := strings.LastIndex(d.path, "/")
	if i < 0 {
		return CollectionRef{err: ErrInvalidPath}
	}
	return CollectionRef{path: d.path[:i], err: d.err}
}

// Err reports whether the reference was built from an invalid segment.
func (d DocRef) Err() error { return d.err }

func (d DocRef) IsZero() bool { return d.path == "" }

func (d DocRef) String() string { return d.path }

// validDoc returns the error carried by ref, or ErrInvalidPath for zero refs.
func validDoc(ref DocRef) error {
	if ref.err != nil {
		return ref.err
	}
	if ref.path == "" {
		return fmt.Errorf("%w: empty document path", ErrInvalidPath)
	}
	return nil
}

func validCollection(ref CollectionRef) error {
	if ref.err != nil {
		return ref.err
	}
	if ref.path == "" {
		return fmt.Errorf("%w: empty collection path", ErrInvalidPath)
	}
	return nil
}
