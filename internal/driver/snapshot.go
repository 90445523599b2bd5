package driver

import (
	"sort"
	"strings"

	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// Snapshot is the value of a path at one point in time. Value holds the
// generic JSON tree; nil means the path does not exist.
type Snapshot struct {
	Path  string
	Value any
}

func NewSnapshot(path string, value any) *Snapshot {
	return &Snapshot{Path: utils.JoinPath(path), Value: value}
}

func (s *Snapshot) Exists() bool {
	return s != nil && s.Value != nil
}

// Key is the last segment of the path.
func (s *Snapshot) Key() string {
	i := strings.LastIndexByte(s.Path, '/')
	return s.Path[i+1:]
}

func (s *Snapshot) Decode(v any) error {
	b, err := utils.Json.Marshal(s.Value)
	if err != nil {
		return err
	}
	return utils.Json.Unmarshal(b, v)
}

// Keys returns the child keys in sorted order.
func (s *Snapshot) Keys() []string {
	m, ok := s.Value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Snapshot) Child(key string) *Snapshot {
	var v any
	if m, ok := s.Value.(map[string]any); ok {
		v = m[key]
	}
	return NewSnapshot(utils.JoinPath(s.Path, key), v)
}

// Children returns a snapshot per child, in key order.
func (s *Snapshot) Children() []*Snapshot {
	keys := s.Keys()
	out := make([]*Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.Child(k))
	}
	return out
}

// Lookup walks a relative path inside a tree.
func Lookup(tree any, rel string) any {
	cur := tree
	for _, seg := range utils.SplitPath(rel) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// DeepCopy copies a generic JSON tree.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, c := range t {
			m[k] = DeepCopy(c)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, c := range t {
			l[i] = DeepCopy(c)
		}
		return l
	default:
		return v
	}
}
