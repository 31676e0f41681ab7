package docstore

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestBuildSelectCollection(t *testing.T) {
	jobs := Collection("venues").Doc("v1").Collection("jobs")
	sql, args, err := buildSelect(From(jobs).Where("status", "open").OrderBy("createdAt", Desc).Limit(10))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"FROM documents",
		"parent_path = $1",
		"data @> $2::jsonb",
		"data -> $3 IS NOT NULL",
		`ORDER BY data ->> 'createdAt' COLLATE "C" DESC, seq DESC`,
		"LIMIT 10",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql %q missing %q", sql, want)
		}
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
	if args[0] != "venues/v1/jobs" || args[1] != `{"status":"open"}` || args[2] != "createdAt" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildSelectGroup(t *testing.T) {
	sql, args, err := buildSelect(Group("members").Where("userId", "u1").Where("status", "active"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "collection = $1") {
		t.Fatalf("group query should filter on collection: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY seq ASC") {
		t.Fatalf("unordered queries should follow write order: %s", sql)
	}
	if args[1] != `{"status":"active","userId":"u1"}` {
		t.Fatalf("unexpected containment payload %v", args[1])
	}
}

func TestBuildSelectRepeatedField(t *testing.T) {
	q := Group("members").Where("status", "active").Where("userId", "u1").Where("status", "pending")
	sql, args, err := buildSelect(q)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(sql, "data @>") != 2 {
		t.Fatalf("expected one containment test per repeated predicate: %s", sql)
	}
	if args[1] != `{"status":"active","userId":"u1"}` || args[2] != `{"status":"pending"}` {
		t.Fatalf("unexpected containment payloads %v", args[1:])
	}
}

func TestBuildSelectRejectsInjection(t *testing.T) {
	_, _, err := buildSelect(From(Collection("jobs")).OrderBy("x' OR '1'='1", Asc))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMapPgError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	if !errors.Is(mapPgError(dup), ErrAlreadyExists) {
		t.Fatal("unique violation should map to ErrAlreadyExists")
	}
	other := errors.New("boom")
	if mapPgError(other) != other {
		t.Fatal("other errors should pass through")
	}
}
