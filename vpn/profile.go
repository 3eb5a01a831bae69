// Package vpn provides VPN connection management functionality.
// This file contains the ProfileManager, a cached view of the host's
// connection profiles.
package vpn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
)

// ProfileFilter narrows a profile list by category and protocol family.
type ProfileFilter struct {
	// Categories keeps only profiles in these category ids. Empty keeps all.
	Categories []int `json:"categories" yaml:"categories"`
	// Type is common.ConfigTypeAll, ConfigTypeSSH or ConfigTypeV2Ray.
	Type string `json:"type" yaml:"type"`
}

// Apply returns the profiles that pass the filter, in input order.
func (f ProfileFilter) Apply(profiles []bridge.Profile) []bridge.Profile {
	allowed := make(map[int]bool, len(f.Categories))
	for _, id := range f.Categories {
		allowed[id] = true
	}

	out := make([]bridge.Profile, 0, len(profiles))
	for _, p := range profiles {
		if len(allowed) > 0 && !allowed[p.CategoryID] {
			continue
		}
		if !p.MatchesType(f.Type) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// String describes the filter for log messages.
func (f ProfileFilter) String() string {
	typ := f.Type
	if typ == "" {
		typ = common.ConfigTypeAll
	}
	cats := "all"
	if len(f.Categories) > 0 {
		parts := make([]string, len(f.Categories))
		for i, id := range f.Categories {
			parts[i] = fmt.Sprint(id)
		}
		cats = strings.Join(parts, ",")
	}
	return fmt.Sprintf("categories=%s type=%s", cats, typ)
}

// ProfileManager caches the host's profile list.
type ProfileManager struct {
	adapter    *bridge.Adapter
	mu         sync.RWMutex
	categories []bridge.Category
	profiles   []bridge.Profile
	loadedAt   time.Time
}

// NewProfileManager creates a ProfileManager over adapter.
func NewProfileManager(adapter *bridge.Adapter) *ProfileManager {
	return &ProfileManager{adapter: adapter}
}

// Load re-reads profiles from the host.
func (pm *ProfileManager) Load(ctx context.Context) error {
	categories := pm.adapter.Categories(ctx)

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.categories = categories
	pm.profiles = bridge.Flatten(categories)
	pm.loadedAt = time.Now()
	return nil
}

func (pm *ProfileManager) ensureLoaded(ctx context.Context) {
	pm.mu.RLock()
	loaded := !pm.loadedAt.IsZero()
	pm.mu.RUnlock()
	if !loaded {
		_ = pm.Load(ctx)
	}
}

// Categories returns the cached categories, loading them on first use.
func (pm *ProfileManager) Categories(ctx context.Context) []bridge.Category {
	pm.ensureLoaded(ctx)
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.categories
}

// List returns all cached profiles in display order.
func (pm *ProfileManager) List(ctx context.Context) []bridge.Profile {
	pm.ensureLoaded(ctx)
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]bridge.Profile, len(pm.profiles))
	copy(out, pm.profiles)
	return out
}

// Filter returns the cached profiles that pass f.
func (pm *ProfileManager) Filter(ctx context.Context, f ProfileFilter) []bridge.Profile {
	return f.Apply(pm.List(ctx))
}

// Get finds a profile by id or name.
func (pm *ProfileManager) Get(ctx context.Context, nameOrID string) (bridge.Profile, error) {
	p, ok := bridge.FindProfile(pm.List(ctx), nameOrID)
	if !ok {
		return bridge.Profile{}, fmt.Errorf("%w: %s", common.ErrProfileNotFound, nameOrID)
	}
	return p, nil
}
