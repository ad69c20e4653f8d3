package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basepair/resourcereg/internal/codec"
	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/store/kv"
	"github.com/basepair/resourcereg/internal/types"
)

// entry is one item a catalog container resolves, carrying a projectable
// field (Row) so TargetAttr has something to pick off.
type entry struct {
	Row  string
	Name string
}

// catalog is a container resource exercising every Item descriptor field:
// ItemAt addresses entries by an explicit key (rather than by the accessing
// resource's own identity, forcing MapAttr to supply one), Invert returns a
// reverse-keyed facet, and EdgeAt addresses a separate edge facet.
type catalog struct {
	items   map[string]*entry
	reverse map[string]*entry
	edges   map[string]*entry

	docs string
	id   string
}

func (c *catalog) Doc() string               { return c.docs }
func (c *catalog) PersistentID() string      { return c.id }
func (c *catalog) SetPersistentID(id string) { c.id = id }

func (c *catalog) ItemAt(key any) (any, bool) {
	k, ok := key.(string)
	if !ok {
		return nil, false
	}
	e, ok := c.items[k]
	return e, ok
}

func (c *catalog) EdgeAt(key any) (any, bool) {
	k, ok := key.(string)
	if !ok {
		return nil, false
	}
	e, ok := c.edges[k]
	return e, ok
}

func (c *catalog) Invert() types.ItemContainer {
	return &catalogInverse{byValue: c.reverse}
}

type catalogInverse struct {
	byValue map[string]*entry
}

func (ic *catalogInverse) ItemAt(key any) (any, bool) {
	k, ok := key.(string)
	if !ok {
		return nil, false
	}
	e, ok := ic.byValue[k]
	return e, ok
}

func newCatalogResolver(t *testing.T) (*Resolver, context.Context) {
	t.Helper()
	dir := t.TempDir()
	reg := store.NewRegistry()
	reg.Register("kv", kv.NewBackendFactory())

	typeReg := codec.NewRegistry()
	typeReg.Register(&widget{})
	typeReg.Register(&catalog{})

	ctx := context.Background()
	r, err := New(ctx, Options{PathSource: dir, Registry: reg, Types: typeReg})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, ctx
}

func TestItemDescriptorMapAttrUsesNamedFieldAsKey(t *testing.T) {
	r, ctx := newCatalogResolver(t)

	require.NoError(t, r.Put(ctx, "T.catalog", &catalog{
		docs:  "doc",
		items: map[string]*entry{"alpha": {Row: "R1", Name: "Alpha Entry"}},
	}))
	require.NoError(t, r.Put(ctx, "T.one", &widget{Name: "alpha", docs: "doc"}))
	require.NoError(t, r.graph.Bind("T.one", "catalogEntry", schema.Descriptor{
		Kind: schema.KindItem, TargetID: "T.catalog", MapAttr: "Name",
	}))

	obj, err := r.Resolve(ctx, "T.one")
	require.NoError(t, err)

	val, err := r.Attr(ctx, obj, "catalogEntry")
	require.NoError(t, err)
	assert.Equal(t, &entry{Row: "R1", Name: "Alpha Entry"}, val)
}

func TestItemDescriptorInvertUsesReverseContainer(t *testing.T) {
	r, ctx := newCatalogResolver(t)

	require.NoError(t, r.Put(ctx, "T.catalog", &catalog{
		docs:    "doc",
		reverse: map[string]*entry{"beta": {Row: "R2", Name: "Beta Entry"}},
	}))
	require.NoError(t, r.Put(ctx, "T.one", &widget{Name: "beta", docs: "doc"}))
	require.NoError(t, r.graph.Bind("T.one", "catalogEntry", schema.Descriptor{
		Kind: schema.KindItem, TargetID: "T.catalog", MapAttr: "Name", Invert: true,
	}))

	obj, err := r.Resolve(ctx, "T.one")
	require.NoError(t, err)

	val, err := r.Attr(ctx, obj, "catalogEntry")
	require.NoError(t, err)
	assert.Equal(t, &entry{Row: "R2", Name: "Beta Entry"}, val)
}

func TestItemDescriptorGetEdgesUsesEdgeFacet(t *testing.T) {
	r, ctx := newCatalogResolver(t)

	require.NoError(t, r.Put(ctx, "T.catalog", &catalog{
		docs:  "doc",
		edges: map[string]*entry{"gamma": {Row: "R3", Name: "Gamma Edge"}},
	}))
	require.NoError(t, r.Put(ctx, "T.one", &widget{Name: "gamma", docs: "doc"}))
	require.NoError(t, r.graph.Bind("T.one", "catalogEdge", schema.Descriptor{
		Kind: schema.KindItem, TargetID: "T.catalog", MapAttr: "Name", GetEdges: true,
	}))

	obj, err := r.Resolve(ctx, "T.one")
	require.NoError(t, err)

	val, err := r.Attr(ctx, obj, "catalogEdge")
	require.NoError(t, err)
	assert.Equal(t, &entry{Row: "R3", Name: "Gamma Edge"}, val)
}

func TestItemDescriptorTargetAttrProjectsResultField(t *testing.T) {
	r, ctx := newCatalogResolver(t)

	require.NoError(t, r.Put(ctx, "T.catalog", &catalog{
		docs:  "doc",
		items: map[string]*entry{"delta": {Row: "R4", Name: "Delta Entry"}},
	}))
	require.NoError(t, r.Put(ctx, "T.one", &widget{Name: "delta", docs: "doc"}))
	require.NoError(t, r.graph.Bind("T.one", "catalogRow", schema.Descriptor{
		Kind: schema.KindItem, TargetID: "T.catalog", MapAttr: "Name", TargetAttr: "Row",
	}))

	obj, err := r.Resolve(ctx, "T.one")
	require.NoError(t, err)

	val, err := r.Attr(ctx, obj, "catalogRow")
	require.NoError(t, err)
	assert.Equal(t, "R4", val)
}

func TestInvertReturnsOtherSideOfSymmetricRelation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	r := newTestResolver(t, dir)

	require.NoError(t, r.Put(ctx, "T.one", &widget{Name: "one", docs: "doc"}))
	require.NoError(t, r.Put(ctx, "T.two", &widget{Name: "two", docs: "doc"}))
	require.NoError(t, r.DeclareInverse(ctx, "", "T.one", "T.two"))

	one, err := r.Resolve(ctx, "T.one")
	require.NoError(t, err)
	two, err := r.Resolve(ctx, "T.two")
	require.NoError(t, err)

	invOne, err := r.Invert(ctx, one)
	require.NoError(t, err)
	assert.Same(t, two, invOne)

	invTwo, err := r.Invert(ctx, two)
	require.NoError(t, err)
	assert.Same(t, one, invTwo)
}
