package docstore

import (
	"fmt"
	"reflect"
	"regexp"
)

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection, or from every collection with
// a given name regardless of parent (a collection group).
type Query struct {
	collection CollectionRef
	group      string
	filters    []Filter
	orderBy    string
	dir        Direction
	limit      int
}

// From starts a query over a single collection.
func From(c CollectionRef) Query {
	return Query{collection: c}
}

// Group starts a query over every collection named name.
func Group(name string) Query {
	return Query{group: name}
}

// Where adds an equality predicate.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, len(q.filters), len(q.filters)+1)
	copy(filters, q.filters)
	q.filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// OrderBy sorts results by field. Documents without the field are excluded.
func (q Query) OrderBy(field string, dir Direction) Query {
	q.orderBy = field
	q.dir = dir
	return q
}

// Limit caps the number of results. Zero means no limit.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// Collection returns the queried collection, if the query is not a group
// query.
func (q Query) Collection() (CollectionRef, bool) {
	return q.collection, q.group == ""
}

// GroupName returns the collection group name, or "" for collection queries.
func (q Query) GroupName() string { return q.group }

// Filters returns the equality predicates.
func (q Query) Filters() []Filter { return q.filters }

func (q Query) String() string {
	target := q.collection.Path()
	if q.group != "" {
		target = "group:" + q.group
	}
	return fmt.Sprintf("%s where=%v order=%s %s limit=%d", target, q.filters, q.orderBy, q.dir, q.limit)
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (q Query) validate() error {
	if q.group != "" {
		if err := checkSegment(q.group); err != nil {
			return err
		}
	} else if err := validCollection(q.collection); err != nil {
		return err
	}
	for _, f := range q.filters {
		if !fieldName.MatchString(f.Field) {
			return fmt.Errorf("%w: invalid field name %q", ErrInvalidArgument, f.Field)
		}
	}
	if q.orderBy != "" && !fieldName.MatchString(q.orderBy) {
		return fmt.Errorf("%w: invalid order field %q", ErrInvalidArgument, q.orderBy)
	}
	if q.limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidArgument)
	}
	return nil
}

// normalizedFilters returns the predicates with operands in stored form.
func (q Query) normalizedFilters() ([]Filter, error) {
	out := make([]Filter, len(q.filters))
	for i, f := range q.filters {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Filter{Field: f.Field, Value: v}
	}
	return out, nil
}

// matches reports whether data satisfies every predicate. A missing field
// never matches, including against nil.
func matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// compareValues orders JSON values: null < bool < number < string < other.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}
