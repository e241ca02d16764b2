package pivot

import (
	"encoding/json"
	"slices"
)

// ExpandedSet holds the keys of row nodes whose children are shown. Keys are path-based, so they
// stay valid across re-aggregation as long as the row fields and group values are unchanged.
// A nil *ExpandedSet is an empty set that keys can be removed from but not added to.
type ExpandedSet struct {
	keys map[string]struct{}
}

func NewExpandedSet(keys ...string) *ExpandedSet {
	set := &ExpandedSet{keys: make(map[string]struct{}, len(keys))}
	for _, key := range keys {
		set.keys[key] = struct{}{}
	}
	return set
}

func (set *ExpandedSet) Has(key string) bool {
	if set == nil {
		return false
	}
	_, ok := set.keys[key]
	return ok
}

// Expands the node if collapsed, and collapses it if expanded. Returns whether the node is now
// expanded. The set must be non-nil.
func (set *ExpandedSet) Toggle(key string) (expanded bool) {
	if set.Has(key) {
		set.Collapse(key)
		return false
	}
	set.Expand(key)
	return true
}

// The set must be non-nil.
func (set *ExpandedSet) Expand(key string) {
	if set.keys == nil {
		set.keys = make(map[string]struct{})
	}
	set.keys[key] = struct{}{}
}

func (set *ExpandedSet) Collapse(key string) {
	if set == nil {
		return
	}
	delete(set.keys, key)
}

func (set *ExpandedSet) Len() int {
	if set == nil {
		return 0
	}
	return len(set.keys)
}

func (set *ExpandedSet) Clear() {
	if set == nil {
		return
	}
	clear(set.keys)
}

// Returns the expanded keys in sorted order.
func (set *ExpandedSet) Keys() []string {
	if set == nil {
		return []string{}
	}

	keys := make([]string, 0, len(set.keys))
	for key := range set.keys {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Expands every node that has children. The set must be non-nil.
func (set *ExpandedSet) ExpandAll(tree []*Node) {
	set.ExpandToLevel(tree, -1)
}

// Expands the nodes with children above the given level, so that rows down to that level are
// shown. A negative level expands all nodes.
func (set *ExpandedSet) ExpandToLevel(tree []*Node, level int) {
	for _, node := range tree {
		if !node.HasChildren || (level >= 0 && node.Level >= level) {
			continue
		}
		set.Expand(node.Key)
		set.ExpandToLevel(node.Children, level)
	}
}

func (set *ExpandedSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(set.Keys())
}

func (set *ExpandedSet) UnmarshalJSON(bytes []byte) error {
	var keys []string
	if err := json.Unmarshal(bytes, &keys); err != nil {
		return err
	}
	*set = *NewExpandedSet(keys...)
	return nil
}
