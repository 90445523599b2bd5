package redis

import (
	"sort"
	"strconv"
	"strings"

	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// Values are stored one leaf per key: the object {"a":{"b":1}} at p becomes
// the key <prefix>d:p/a/b holding 1. Reads rebuild the tree from a scan.

func (d *Redis) dataKey(path string) string {
	return d.Prefix + "d:" + utils.JoinPath(path)
}

func (d *Redis) pathOf(key string) string {
	return strings.TrimPrefix(key, d.Prefix+"d:")
}

func (d *Redis) channel() string {
	return d.Prefix + "changes"
}

func (d *Redis) leaseKey(id string) string {
	return d.Prefix + "lease:" + id
}

func (d *Redis) leasePathsKey(id string) string {
	return d.Prefix + "lease-paths:" + id
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (d *Redis) descendantsPattern(path string) string {
	p := utils.JoinPath(path)
	if p == "" {
		return globEscaper.Replace(d.Prefix+"d:") + "*"
	}
	return globEscaper.Replace(d.dataKey(p)+"/") + "*"
}

// ancestors returns the strict ancestors of path, nearest last.
func ancestors(path string) []string {
	segs := utils.SplitPath(path)
	out := make([]string, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

// flatten maps each leaf of a generic JSON tree to its path below base.
func flatten(base string, v any, out map[string]any) {
	switch t := v.(type) {
	case nil:
	case map[string]any:
		for k, c := range t {
			flatten(utils.JoinPath(base, k), c, out)
		}
	case []any:
		for i, c := range t {
			flatten(utils.JoinPath(base, strconv.Itoa(i)), c, out)
		}
	default:
		out[utils.JoinPath(base)] = t
	}
}

// build assembles leaves keyed by path relative to the root of the tree.
func build(leaves map[string]any) any {
	if len(leaves) == 0 {
		return nil
	}
	if v, ok := leaves[""]; ok {
		return v
	}
	keys := make([]string, 0, len(leaves))
	for k := range leaves {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	root := map[string]any{}
	for _, k := range keys {
		segs := utils.SplitPath(k)
		cur := root
		for _, seg := range segs[:len(segs)-1] {
			next, ok := cur[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[seg] = next
			}
			cur = next
		}
		cur[segs[len(segs)-1]] = leaves[k]
	}
	return root
}
