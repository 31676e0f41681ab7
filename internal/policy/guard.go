package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
)

// Mode controls what the Guard does with a denial.
type Mode string

const (
	// ModeEnforce rejects denied operations with a *DeniedError.
	ModeEnforce Mode = "enforce"
	// ModeAudit logs denied operations and lets them through.
	ModeAudit Mode = "audit"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeEnforce || m == ModeAudit }

// Recorder receives every decision the Guard makes.
type Recorder interface {
	RecordPolicyDecision(op, kind string, allowed bool)
}

// Guard is a docstore.Store that authorizes every call against the user in
// the call's context before delegating.
type Guard struct {
	next   docstore.Store
	engine *Engine
	mode   Mode
	rec    Recorder
}

// NewGuard wraps next. rec may be nil.
func NewGuard(next docstore.Store, engine *Engine, mode Mode, rec Recorder) *Guard {
	if !mode.Valid() {
		mode = ModeEnforce
	}
	return &Guard{next: next, engine: engine, mode: mode, rec: rec}
}

func actorOf(ctx context.Context) string {
	if u := auth.UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}

func kindOf(req Request) string {
	if req.Group != "" {
		return groupLocation(req.Group).Kind.String()
	}
	return paths.Classify(req.Path).Kind.String()
}

func (g *Guard) check(ctx context.Context, req Request) error {
	req.Actor = actorOf(ctx)
	d, err := g.engine.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("evaluating policy: %w", err)
	}

	target := req.Path
	if req.Group != "" {
		target = "group:" + req.Group
	}
	if g.rec != nil {
		g.rec.RecordPolicyDecision(string(req.Op), kindOf(req), d.Allowed)
	}
	if d.Allowed {
		return nil
	}

	if g.mode == ModeAudit {
		slog.Warn("policy denial (audit mode, allowed)",
			"actor", req.Actor, "op", req.Op, "target", target, "reason", d.Reason)
		return nil
	}
	slog.Warn("policy denied",
		"actor", req.Actor, "op", req.Op, "target", target, "reason", d.Reason)
	return &DeniedError{Op: req.Op, Target: target, Reason: d.Reason}
}

func (g *Guard) Get(ctx context.Context, ref docstore.DocRef) (*docstore.Document, error) {
	if err := ref.Err(); err != nil {
		return nil, err
	}
	if err := g.check(ctx, Request{Op: OpRead, Path: ref.Path()}); err != nil {
		return nil, err
	}
	return g.next.Get(ctx, ref)
}

// Set is authorized as a create when the document does not exist yet and as
// an update otherwise.
func (g *Guard) Set(ctx context.Context, ref docstore.DocRef, data docstore.Fields, opts ...docstore.SetOption) error {
	if err := ref.Err(); err != nil {
		return err
	}
	op := OpUpdate
	if _, err := g.next.Get(ctx, ref); errors.Is(err, docstore.ErrNotFound) {
		op = OpCreate
	} else if err != nil {
		return err
	}
	if err := g.check(ctx, Request{Op: op, Path: ref.Path(), Data: data}); err != nil {
		return err
	}
	return g.next.Set(ctx, ref, data, opts...)
}

func (g *Guard) Create(ctx context.Context, coll docstore.CollectionRef, data docstore.Fields) (docstore.DocRef, error) {
	if err := coll.Err(); err != nil {
		return docstore.DocRef{}, err
	}
	if err := g.check(ctx, Request{Op: OpCreate, Path: coll.Path(), Data: data}); err != nil {
		return docstore.DocRef{}, err
	}
	return g.next.Create(ctx, coll, data)
}

func (g *Guard) Update(ctx context.Context, ref docstore.DocRef, data docstore.Fields) error {
	if err := ref.Err(); err != nil {
		return err
	}
	if err := g.check(ctx, Request{Op: OpUpdate, Path: ref.Path(), Data: data}); err != nil {
		return err
	}
	return g.next.Update(ctx, ref, data)
}

func (g *Guard) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	req := Request{Op: OpList, Group: q.GroupName(), Filters: q.Filters()}
	if coll, ok := q.Collection(); ok {
		if err := coll.Err(); err != nil {
			return nil, err
		}
		req.Path = coll.Path()
	}
	if err := g.check(ctx, req); err != nil {
		return nil, err
	}
	return g.next.Query(ctx, q)
}

func (g *Guard) Watch(ctx context.Context, ref docstore.DocRef) (*docstore.Watch, error) {
	if err := ref.Err(); err != nil {
		return nil, err
	}
	if err := g.check(ctx, Request{Op: OpWatch, Path: ref.Path()}); err != nil {
		return nil, err
	}
	return g.next.Watch(ctx, ref)
}
