package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenBuild(t *testing.T) {
	tree := map[string]any{
		"userId": "u1",
		"meta":   map[string]any{"createdAt": float64(5), "tags": []any{"a", "b"}},
	}
	leaves := map[string]any{}
	flatten("presence/ws/t1", tree, leaves)
	assert.Equal(t, map[string]any{
		"presence/ws/t1/userId":         "u1",
		"presence/ws/t1/meta/createdAt": float64(5),
		"presence/ws/t1/meta/tags/0":    "a",
		"presence/ws/t1/meta/tags/1":    "b",
	}, leaves)

	rel := map[string]any{"userId": "u1", "meta/createdAt": float64(5)}
	assert.Equal(t, map[string]any{
		"userId": "u1",
		"meta":   map[string]any{"createdAt": float64(5)},
	}, build(rel))
	assert.Equal(t, "x", build(map[string]any{"": "x"}))
	assert.Nil(t, build(nil))
}

func TestKeys(t *testing.T) {
	d := &Redis{Addition: Addition{Prefix: "p:"}}
	assert.Equal(t, "p:d:a/b", d.dataKey("/a/b/"))
	assert.Equal(t, "a/b", d.pathOf("p:d:a/b"))
	assert.Equal(t, `p:d:ws\*/*`, d.descendantsPattern("ws*"))
	assert.Equal(t, "p:d:*", d.descendantsPattern(""))
	assert.Equal(t, []string{"a", "a/b"}, ancestors("a/b/c"))
	assert.Empty(t, ancestors("a"))
}
