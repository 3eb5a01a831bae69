package ipfinder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yllada/ssht-client/storage"
)

const listPrefix = "list-"

// SavedList is a stored range list.
type SavedList struct {
	Name  string
	Value string
}

// Ranges parses the list value.
func (l SavedList) Ranges() []string {
	return ParseRanges(l.Value)
}

// Lists stores range lists in local storage under "list-<unix millis>".
type Lists struct {
	store *storage.Store
	now   func() time.Time
}

// NewLists wraps store.
func NewLists(store *storage.Store) *Lists {
	return &Lists{store: store, now: time.Now}
}

// Save stores value and returns the generated list name.
func (l *Lists) Save(ctx context.Context, value string) (string, error) {
	name := fmt.Sprintf("%s%d", listPrefix, l.now().UnixMilli())
	if err := l.store.Set(ctx, name, value); err != nil {
		return "", err
	}
	return name, nil
}

// All returns every saved list, oldest first.
func (l *Lists) All(ctx context.Context) ([]SavedList, error) {
	keys, err := l.store.Keys(ctx, listPrefix)
	if err != nil {
		return nil, err
	}
	lists := make([]SavedList, 0, len(keys))
	for _, k := range keys {
		var v string
		if err := l.store.Get(ctx, k, &v); err != nil {
			return nil, err
		}
		lists = append(lists, SavedList{Name: k, Value: v})
	}
	return lists, nil
}

// Get loads one list.
func (l *Lists) Get(ctx context.Context, name string) (SavedList, error) {
	if !strings.HasPrefix(name, listPrefix) {
		name = listPrefix + name
	}
	var v string
	if err := l.store.Get(ctx, name, &v); err != nil {
		return SavedList{}, err
	}
	return SavedList{Name: name, Value: v}, nil
}

// Delete removes a list.
func (l *Lists) Delete(ctx context.Context, name string) error {
	if !strings.HasPrefix(name, listPrefix) {
		name = listPrefix + name
	}
	return l.store.Delete(ctx, name)
}
