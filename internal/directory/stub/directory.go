package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"holder-roles/internal/directory"
	"holder-roles/internal/domain"
)

// ErrFailed is returned by injected call failures.
var ErrFailed = errors.New("stub: directory call failed")

// Call is one recorded mutation.
type Call struct {
	Op       string // "add" or "remove"
	MemberID string
	RoleID   string
}

// Directory implements directory.RoleDirectory in memory.
//
// Every call panics if it is entered while another call is in progress, so a
// test passes only if the caller serializes directory access.
type Directory struct {
	mu        sync.Mutex
	members   map[string]*directory.Member // by identity
	roles     map[string]*directory.Role   // by id
	granted   map[string]map[string]bool   // member id -> role ids
	calls     []Call
	total     int
	failAdd   map[string]bool // role ids
	failRem   map[string]bool
	failAll   bool
	delay     time.Duration
	inside    atomic.Int32
	reentries atomic.Int32
}

var _ directory.RoleDirectory = (*Directory)(nil)

// NewDirectory creates an empty stub directory.
func NewDirectory() *Directory {
	return &Directory{
		members: make(map[string]*directory.Member),
		roles:   make(map[string]*directory.Role),
		granted: make(map[string]map[string]bool),
		failAdd: make(map[string]bool),
		failRem: make(map[string]bool),
	}
}

// AddMember registers identity with the given member id.
func (d *Directory) AddMember(identity, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	username, disc := directory.SplitIdentity(identity)
	d.members[identity] = &directory.Member{ID: id, Username: username, Discriminator: disc}
}

// AddRoles registers roles by id; the name is "name-<id>".
func (d *Directory) AddRoles(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.roles[id] = &directory.Role{ID: id, Name: "name-" + id}
	}
}

// Grant marks role as held by member without recording a call.
func (d *Directory) Grant(memberID, roleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grant(memberID, roleID)
}

// FailAdd makes AddRole fail for roleID.
func (d *Directory) FailAdd(roleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAdd[roleID] = true
}

// FailRemove makes RemoveRole fail for roleID.
func (d *Directory) FailRemove(roleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failRem[roleID] = true
}

// FailAll makes every call fail.
func (d *Directory) FailAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAll = true
}

// SetDelay makes every call sleep for delay while held.
func (d *Directory) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

// Calls returns the recorded mutations.
func (d *Directory) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// TotalCalls returns the number of calls of any kind, lookups included.
func (d *Directory) TotalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

// Reentries returns the number of overlapping entries observed.
func (d *Directory) Reentries() int {
	return int(d.reentries.Load())
}

// HasRole reports whether member currently holds role.
func (d *Directory) HasRole(memberID, roleID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.granted[memberID][roleID]
}

func (d *Directory) enter() func() {
	if d.inside.Add(1) != 1 {
		d.reentries.Add(1)
		d.inside.Add(-1)
		panic("stub directory entered concurrently")
	}

	d.mu.Lock()
	d.total++
	delay := d.delay
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return func() { d.inside.Add(-1) }
}

func (d *Directory) grant(memberID, roleID string) {
	if d.granted[memberID] == nil {
		d.granted[memberID] = make(map[string]bool)
	}
	d.granted[memberID][roleID] = true
}

// ResolveMember returns the registered member of identity.
func (d *Directory) ResolveMember(_ context.Context, serverID, identity string) (*directory.Member, error) {
	defer d.enter()()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return nil, ErrFailed
	}
	m, ok := d.members[identity]
	if !ok {
		return nil, fmt.Errorf("member %s on %s: %w", identity, serverID, directory.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

// ResolveRole returns the registered role.
func (d *Directory) ResolveRole(_ context.Context, serverID, roleID string) (*directory.Role, error) {
	defer d.enter()()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAll {
		return nil, ErrFailed
	}
	r, ok := d.roles[roleID]
	if !ok {
		return nil, fmt.Errorf("role %s on %s: %w", roleID, serverID, directory.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// AddRole records and applies a grant.
func (d *Directory) AddRole(_ context.Context, _ string, member *directory.Member, role *directory.Role) error {
	defer d.enter()()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "add", MemberID: member.ID, RoleID: role.ID})
	if d.failAll || d.failAdd[role.ID] {
		return ErrFailed
	}
	d.grant(member.ID, role.ID)
	return nil
}

// RemoveRole records and applies a revocation.
func (d *Directory) RemoveRole(_ context.Context, _ string, member *directory.Member, role *directory.Role) error {
	defer d.enter()()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "remove", MemberID: member.ID, RoleID: role.ID})
	if d.failAll || d.failRem[role.ID] {
		return ErrFailed
	}
	delete(d.granted[member.ID], role.ID)
	return nil
}

// Factory hands out one Directory for every project.
type Factory struct {
	Dir *Directory
	Err error
}

var _ directory.Factory = (*Factory)(nil)

// For returns f.Dir or f.Err.
func (f *Factory) For(*domain.ProjectConfig) (directory.RoleDirectory, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Dir, nil
}
