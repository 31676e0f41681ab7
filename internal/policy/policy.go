// Package policy is the authorization layer at the document store boundary.
// Given an actor, an operation and a target path it allows or denies the
// operation based on the actor's stored profile role and their membership in
// the target venue, regardless of which surface issued the call.
package policy

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/schema"
)

// Op is an operation on a document or collection.
type Op string

const (
	OpRead   Op = "read"
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpWatch  Op = "watch"
)

// Request describes one operation to authorize.
type Request struct {
	Actor string
	Op    Op
	// Path is a document path, or a collection path for list and for
	// creates with a generated id.
	Path string
	// Group is set instead of Path for collection-group queries.
	Group   string
	Data    docstore.Fields
	Filters []docstore.Filter
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// DeniedError is returned by the Guard when a request is denied. It matches
// docstore.ErrPermissionDenied under errors.Is.
type DeniedError struct {
	Op     Op
	Target string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s %s: %s", e.Op, e.Target, e.Reason)
}

func (e *DeniedError) Is(target error) bool { return target == docstore.ErrPermissionDenied }

// Engine evaluates requests. It reads profiles, memberships and existing
// documents through an unguarded store.
type Engine struct {
	store               docstore.Store
	allowSelfRoleChange bool
}

// Option configures an Engine.
type Option func(*Engine)

// AllowSelfRoleChange lets any user change their own role. It exists for
// demo deployments and is off by default.
func AllowSelfRoleChange(v bool) Option {
	return func(e *Engine) { e.allowSelfRoleChange = v }
}

// NewEngine returns an engine reading through store.
func NewEngine(store docstore.Store, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

type actorInfo struct {
	role     schema.Role
	disabled bool
}

// Evaluate decides req. An error means the decision could not be made.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Decision, error) {
	if req.Actor == "" {
		return deny("not signed in"), nil
	}
	actor, err := e.actor(ctx, req.Actor)
	if err != nil {
		return Decision{}, err
	}

	loc := paths.Classify(req.Path)
	if req.Group != "" {
		loc = groupLocation(req.Group)
	}
	if actor.disabled && !(loc.Kind == paths.KindUser && loc.UserID == req.Actor && isRead(req.Op)) {
		return deny("account is disabled"), nil
	}

	if actor.role == schema.RoleSystemAdmin {
		if loc.Kind == paths.KindJobUpdate && req.Op == OpUpdate {
			return deny("job updates are append-only"), nil
		}
		return allow("system admin"), nil
	}

	switch loc.Kind {
	case paths.KindUser:
		return e.evalUser(ctx, req, loc, actor)
	case paths.KindVenue:
		return e.evalVenue(ctx, req, loc)
	case paths.KindVenueMember:
		return e.evalMember(ctx, req, loc)
	case paths.KindVenueInvite:
		return e.requireMember(ctx, req.Actor, loc.VenueID, true)
	case paths.KindJob:
		return e.evalJob(ctx, req, loc)
	case paths.KindJobUpdate:
		return e.evalJobUpdate(ctx, req, loc)
	}
	return deny("unknown path"), nil
}

func groupLocation(group string) paths.Location {
	switch group {
	case paths.MembersCollection:
		return paths.Location{Kind: paths.KindVenueMember, IsCollection: true}
	case paths.JobsCollection:
		return paths.Location{Kind: paths.KindJob, IsCollection: true}
	case paths.UpdatesCollection:
		return paths.Location{Kind: paths.KindJobUpdate, IsCollection: true}
	case paths.InvitesCollection:
		return paths.Location{Kind: paths.KindVenueInvite, IsCollection: true}
	}
	return paths.Location{}
}

func isRead(op Op) bool { return op == OpRead || op == OpWatch }

func (e *Engine) evalUser(ctx context.Context, req Request, loc paths.Location, actor actorInfo) (Decision, error) {
	if loc.IsCollection {
		return deny("listing users requires system admin"), nil
	}
	if loc.UserID != req.Actor {
		return deny("profiles are private to their owner"), nil
	}
	if uid, ok := asString(req.Data["uid"]); ok && uid != req.Actor {
		return deny("uid must match the profile id"), nil
	}

	switch req.Op {
	case OpRead, OpWatch:
		return allow("own profile"), nil
	case OpCreate:
		role, ok := asString(req.Data["role"])
		if ok && schema.Role(role) != schema.DefaultRole && !e.allowSelfRoleChange {
			return deny("new profiles must carry the default role"), nil
		}
		return allow("own profile"), nil
	case OpUpdate:
		role, ok := asString(req.Data["role"])
		if ok && schema.Role(role) != actor.role && !e.allowSelfRoleChange {
			return deny("changing a role requires system admin"), nil
		}
		return allow("own profile"), nil
	}
	return deny("operation not permitted on profiles"), nil
}

func (e *Engine) evalVenue(ctx context.Context, req Request, loc paths.Location) (Decision, error) {
	if req.Op == OpCreate {
		if createdBy, _ := asString(req.Data["createdBy"]); createdBy != req.Actor {
			return deny("venue createdBy must be the caller"), nil
		}
		return allow("venue creator"), nil
	}
	if loc.IsCollection {
		return deny("listing all venues requires system admin"), nil
	}
	switch req.Op {
	case OpRead, OpWatch:
		return e.requireMember(ctx, req.Actor, loc.VenueID, false)
	case OpUpdate:
		return e.requireMember(ctx, req.Actor, loc.VenueID, true)
	}
	return deny("operation not permitted on venues"), nil
}

func (e *Engine) evalMember(ctx context.Context, req Request, loc paths.Location) (Decision, error) {
	if loc.VenueID == "" {
		// Collection-group query across every venue's members.
		if req.Op != OpList {
			return deny("operation not permitted on membership group"), nil
		}
		for _, f := range req.Filters {
			if v, ok := asString(f.Value); f.Field == "userId" && ok && v == req.Actor {
				return allow("own memberships"), nil
			}
		}
		return deny("membership group queries must filter on the caller's userId"), nil
	}

	switch req.Op {
	case OpRead, OpWatch:
		if loc.UserID == req.Actor {
			return allow("own membership"), nil
		}
		return e.requireMember(ctx, req.Actor, loc.VenueID, false)
	case OpList:
		return e.requireMember(ctx, req.Actor, loc.VenueID, false)
	case OpCreate, OpUpdate:
		d, err := e.requireMember(ctx, req.Actor, loc.VenueID, true)
		if err != nil || d.Allowed {
			return d, err
		}
		if req.Op == OpCreate && loc.UserID == req.Actor {
			return e.bootstrapMembership(ctx, req, loc)
		}
		return d, nil
	}
	return deny("operation not permitted on memberships"), nil
}

// bootstrapMembership allows the creator of a venue to add themself as its
// first active manager.
func (e *Engine) bootstrapMembership(ctx context.Context, req Request, loc paths.Location) (Decision, error) {
	role, _ := asString(req.Data["role"])
	status, _ := asString(req.Data["status"])
	userID, hasUserID := asString(req.Data["userId"])
	if schema.Role(role) != schema.RoleManager || schema.MemberStatus(status) != schema.MemberActive {
		return deny("venue creators may only add themselves as active manager"), nil
	}
	if hasUserID && userID != req.Actor {
		return deny("userId must match the membership id"), nil
	}
	doc, err := e.store.Get(ctx, paths.VenueDoc(loc.VenueID))
	if errors.Is(err, docstore.ErrNotFound) {
		return deny("venue does not exist"), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if createdBy, _ := asString(doc.Data["createdBy"]); createdBy != req.Actor {
		return deny("only the venue creator may bootstrap its membership"), nil
	}
	return allow("venue creator bootstrap"), nil
}

func (e *Engine) evalJob(ctx context.Context, req Request, loc paths.Location) (Decision, error) {
	if loc.VenueID == "" {
		return deny("job group queries require system admin"), nil
	}
	switch req.Op {
	case OpRead, OpWatch, OpList:
		return e.requireMember(ctx, req.Actor, loc.VenueID, false)
	case OpCreate, OpUpdate:
		return e.requireMember(ctx, req.Actor, loc.VenueID, true)
	}
	return deny("operation not permitted on jobs"), nil
}

func (e *Engine) evalJobUpdate(ctx context.Context, req Request, loc paths.Location) (Decision, error) {
	if loc.VenueID == "" {
		return deny("job update group queries require system admin"), nil
	}
	switch req.Op {
	case OpUpdate:
		return deny("job updates are append-only"), nil
	case OpCreate:
		if createdBy, _ := asString(req.Data["createdBy"]); createdBy != req.Actor {
			return deny("update createdBy must be the caller"), nil
		}
		return e.requireMember(ctx, req.Actor, loc.VenueID, false)
	case OpRead, OpWatch, OpList:
		return e.requireMember(ctx, req.Actor, loc.VenueID, false)
	}
	return deny("operation not permitted on job updates"), nil
}

// requireMember allows active members of venueID, or only active managers
// when manager is set.
func (e *Engine) requireMember(ctx context.Context, uid, venueID string, manager bool) (Decision, error) {
	m, err := e.membership(ctx, venueID, uid)
	if err != nil {
		return Decision{}, err
	}
	switch {
	case m == nil:
		return deny("not a member of venue " + venueID), nil
	case m.Status != schema.MemberActive:
		return deny("membership in venue " + venueID + " is not active"), nil
	case manager && m.Role != schema.RoleManager:
		return deny("requires manager membership in venue " + venueID), nil
	case manager:
		return allow("active venue manager"), nil
	}
	return allow("active venue member"), nil
}

func (e *Engine) membership(ctx context.Context, venueID, uid string) (*schema.VenueMember, error) {
	if venueID == "" {
		return nil, nil
	}
	doc, err := e.store.Get(ctx, paths.VenueMemberDoc(venueID, uid))
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading membership: %w", err)
	}
	var m schema.VenueMember
	if err := doc.DataTo(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (e *Engine) actor(ctx context.Context, uid string) (actorInfo, error) {
	doc, err := e.store.Get(ctx, paths.UserDoc(uid))
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
		return actorInfo{}, nil
	}
	if err != nil {
		return actorInfo{}, fmt.Errorf("reading actor profile: %w", err)
	}
	var info struct {
		Role       schema.Role `json:"role"`
		IsDisabled bool        `json:"isDisabled"`
	}
	if err := doc.DataTo(&info); err != nil {
		return actorInfo{}, err
	}
	return actorInfo{role: info.Role, disabled: info.IsDisabled}, nil
}

// asString reads string-kinded values, including named string types such as
// schema.Role.
func asString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}
