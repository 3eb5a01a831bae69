package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yllada/ssht-client/common"
)

// ProfileAuth holds credentials embedded in a profile.
type ProfileAuth struct {
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	V2RayUUID string `json:"v2ray_uuid,omitempty" yaml:"v2ray_uuid,omitempty"`
}

// Profile is a connection configuration published by the host.
type Profile struct {
	ID          int          `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Mode        string       `json:"mode" yaml:"mode"`
	Sorter      int          `json:"sorter" yaml:"sorter"`
	Icon        string       `json:"icon,omitempty" yaml:"icon,omitempty"`
	Type        string       `json:"type,omitempty" yaml:"type,omitempty"`
	Auth        *ProfileAuth `json:"auth,omitempty" yaml:"auth,omitempty"`
	CategoryID  int          `json:"category_id,omitempty" yaml:"category_id,omitempty"`

	CategoryName  string `json:"-" yaml:"-"`
	CategoryColor string `json:"-" yaml:"-"`
}

// Category groups profiles.
type Category struct {
	ID     int       `json:"id" yaml:"id"`
	Name   string    `json:"name" yaml:"name"`
	Sorter int       `json:"sorter" yaml:"sorter"`
	Color  string    `json:"color" yaml:"color"`
	Items  []Profile `json:"items" yaml:"items"`
}

// IsV2Ray reports whether the profile uses a V2Ray transport.
func (p Profile) IsV2Ray() bool {
	return strings.HasPrefix(strings.ToLower(p.Mode), "v2ray")
}

// MatchesType reports whether the profile belongs to the given family
// (common.ConfigTypeAll, ConfigTypeSSH or ConfigTypeV2Ray).
func (p Profile) MatchesType(configType string) bool {
	mode := strings.ToLower(p.Mode)
	switch configType {
	case common.ConfigTypeSSH:
		return common.ContainsAny(mode, "ssh", "proxy", "socks")
	case common.ConfigTypeV2Ray:
		return common.ContainsAny(mode, "v2ray", "vmess", "vless")
	default:
		return true
	}
}

// ParseCategories decodes the host's category list and sorts categories
// and their items by Sorter.
func ParseCategories(raw string) ([]Category, error) {
	var categories []Category
	if err := json.Unmarshal([]byte(raw), &categories); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidProfile, err)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Sorter < categories[j].Sorter
	})
	for i := range categories {
		items := categories[i].Items
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].Sorter < items[b].Sorter
		})
	}
	return categories, nil
}

// Flatten lists every profile in category order, tagged with its category.
func Flatten(categories []Category) []Profile {
	var profiles []Profile
	for _, c := range categories {
		for _, item := range c.Items {
			item.CategoryID = c.ID
			item.CategoryName = c.Name
			item.CategoryColor = c.Color
			profiles = append(profiles, item)
		}
	}
	return profiles
}

// ParseProfile decodes a single profile document.
func ParseProfile(raw string) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidProfile, err)
	}
	return &p, nil
}

// FindProfile looks a profile up by id or case-insensitive name.
func FindProfile(profiles []Profile, nameOrID string) (Profile, bool) {
	key := strings.ToLower(strings.TrimSpace(nameOrID))
	for _, p := range profiles {
		if strings.ToLower(p.Name) == key || fmt.Sprint(p.ID) == key {
			return p, true
		}
	}
	return Profile{}, false
}
