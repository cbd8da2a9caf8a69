package auth

import (
	"context"
	"errors"
	"testing"
)

type memSettings struct{ m map[string]string }

func newMemSettings() *memSettings { return &memSettings{m: make(map[string]string)} }

func (s *memSettings) Setting(_ context.Context, key string) (string, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}
func (s *memSettings) SetSetting(_ context.Context, key, value string) error {
	s.m[key] = value
	return nil
}
func (s *memSettings) DeleteSetting(_ context.Context, key string) error {
	delete(s.m, key)
	return nil
}

type fakeChecker struct {
	member bool
	err    error
	calls  int
}

func (c *fakeChecker) IsMember(_ context.Context, _ string, _ int64) (bool, error) {
	c.calls++
	return c.member, c.err
}

func TestAdminBypassesChannelGate(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	settings.m[ForcedChannelKey] = "@music"
	checker := &fakeChecker{member: false}

	g := NewGate(999, []int64{42}, settings, checker)

	if !g.Allowed(ctx, 42) {
		t.Fatalf("admin denied")
	}
	if !g.Allowed(ctx, 999) {
		t.Fatalf("primary admin denied")
	}
	if checker.calls != 0 {
		t.Fatalf("membership checked for admins")
	}
}

func TestChannelGate(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	checker := &fakeChecker{}
	g := NewGate(999, nil, settings, checker)

	// No forced channel configured: everyone passes.
	if !g.Allowed(ctx, 1) {
		t.Fatalf("denied with no forced channel")
	}
	if checker.calls != 0 {
		t.Fatalf("membership checked with no channel configured")
	}

	settings.m[ForcedChannelKey] = "@music"

	checker.member = false
	if g.Allowed(ctx, 1) {
		t.Fatalf("non-member allowed")
	}
	checker.member = true
	if !g.Allowed(ctx, 1) {
		t.Fatalf("member denied")
	}
}

func TestCheckerErrorPolicy(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	settings.m[ForcedChannelKey] = "@music"
	checker := &fakeChecker{err: errors.New("telegram unavailable")}
	g := NewGate(999, nil, settings, checker)

	// Fail open (default): errors count as membership.
	if !g.Allowed(ctx, 1) {
		t.Fatalf("fail-open gate denied on checker error")
	}

	g.FailOpen = false
	if g.Allowed(ctx, 1) {
		t.Fatalf("fail-closed gate allowed on checker error")
	}
}

func TestAdminAddRemovePersists(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	g := NewGate(999, nil, settings, nil)

	added, err := g.AddAdmin(ctx, 5)
	if err != nil || !added {
		t.Fatalf("add: %v %v", added, err)
	}
	if added, _ := g.AddAdmin(ctx, 5); added {
		t.Fatalf("double add reported true")
	}
	if !g.IsAdmin(5) {
		t.Fatalf("add not effective")
	}

	// Removing the primary admin must be refused.
	if removed, _ := g.RemoveAdmin(ctx, 999); removed {
		t.Fatalf("primary admin removed")
	}
	if removed, err := g.RemoveAdmin(ctx, 5); err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	if g.IsAdmin(5) {
		t.Fatalf("remove not effective")
	}

	// A fresh gate picks persisted admins back up.
	if _, err := g.AddAdmin(ctx, 7); err != nil {
		t.Fatalf("add: %v", err)
	}
	g2 := NewGate(999, nil, settings, nil)
	if !g2.IsAdmin(7) {
		t.Fatalf("persisted admin not restored")
	}
}
