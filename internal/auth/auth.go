// Package auth implements the access gate: admin membership plus the
// optional forced-channel check that non-admins must pass before searching.
package auth

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ForcedChannelKey is the settings key holding the channel users must join.
// Absence of the key disables the gate.
const ForcedChannelKey = "forced_channel"

// adminsKey persists runtime admin changes so they survive restarts.
const adminsKey = "admin_user_ids"

// MembershipChecker reports whether a user belongs to a channel. The telegram
// layer implements it with a chat-member lookup.
type MembershipChecker interface {
	IsMember(ctx context.Context, channel string, userID int64) (bool, error)
}

// Settings is the slice of the persistent store the gate needs.
type Settings interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Gate decides whether a user may use the bot.
//
// FailOpen controls what a membership-check error means: true treats the user
// as a member (availability over strictness, the inherited behavior), false
// denies. It is a policy switch, not an accident of error handling.
type Gate struct {
	mu           sync.RWMutex
	admins       map[int64]bool
	primaryAdmin int64

	settings Settings
	checker  MembershipChecker
	FailOpen bool
}

// NewGate merges env-provided admin ids, the immutable primary admin and any
// ids persisted from earlier AddAdmin calls.
func NewGate(primaryAdmin int64, initial []int64, settings Settings, checker MembershipChecker) *Gate {
	g := &Gate{
		admins:       make(map[int64]bool),
		primaryAdmin: primaryAdmin,
		settings:     settings,
		checker:      checker,
		FailOpen:     true,
	}
	for _, id := range initial {
		g.admins[id] = true
	}
	if primaryAdmin != 0 {
		g.admins[primaryAdmin] = true
	}
	if settings != nil {
		if v, ok, err := settings.Setting(context.Background(), adminsKey); err == nil && ok {
			for _, id := range parseIDList(v) {
				g.admins[id] = true
			}
		}
	}
	return g
}

// SetChecker installs the membership checker after construction; the
// transport that implements it is built later than the gate.
func (g *Gate) SetChecker(c MembershipChecker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checker = c
}

func (g *Gate) IsAdmin(userID int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.admins[userID]
}

func (g *Gate) IsPrimaryAdmin(userID int64) bool {
	return g.primaryAdmin != 0 && userID == g.primaryAdmin
}

// Admins returns the admin ids in ascending order.
func (g *Gate) Admins() []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int64, 0, len(g.admins))
	for id := range g.admins {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddAdmin grants admin rights and persists the set. Adding an existing admin
// reports false.
func (g *Gate) AddAdmin(ctx context.Context, userID int64) (bool, error) {
	g.mu.Lock()
	if g.admins[userID] {
		g.mu.Unlock()
		return false, nil
	}
	g.admins[userID] = true
	g.mu.Unlock()
	return true, g.persist(ctx)
}

// RemoveAdmin revokes admin rights. The primary admin cannot be removed.
func (g *Gate) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	if g.IsPrimaryAdmin(userID) {
		return false, nil
	}
	g.mu.Lock()
	if !g.admins[userID] {
		g.mu.Unlock()
		return false, nil
	}
	delete(g.admins, userID)
	g.mu.Unlock()
	return true, g.persist(ctx)
}

// ForcedChannel returns the configured channel, or "" when the gate is off.
func (g *Gate) ForcedChannel(ctx context.Context) string {
	if g.settings == nil {
		return ""
	}
	v, ok, err := g.settings.Setting(ctx, ForcedChannelKey)
	if err != nil {
		log.Printf("forced channel lookup failed: %v", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Allowed is the gate predicate:
// admin OR no forced channel configured OR member of the forced channel.
func (g *Gate) Allowed(ctx context.Context, userID int64) bool {
	if g.IsAdmin(userID) {
		return true
	}
	channel := g.ForcedChannel(ctx)
	if channel == "" {
		return true
	}
	g.mu.RLock()
	checker := g.checker
	g.mu.RUnlock()
	if checker == nil {
		return g.FailOpen
	}
	member, err := checker.IsMember(ctx, channel, userID)
	if err != nil {
		log.Printf("membership check failed for %d in %s: %v", userID, channel, err)
		return g.FailOpen
	}
	return member
}

func (g *Gate) persist(ctx context.Context) error {
	if g.settings == nil {
		return nil
	}
	return g.settings.SetSetting(ctx, adminsKey, formatIDList(g.Admins()))
}

func parseIDList(s string) []int64 {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func formatIDList(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
