package pathproxy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basepair/resourcereg/internal/codec"
	"github.com/basepair/resourcereg/internal/pathproxy"
	"github.com/basepair/resourcereg/internal/resolver"
	"github.com/basepair/resourcereg/internal/schema"
	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/store/kv"
	"github.com/basepair/resourcereg/internal/types"
)

// widget mirrors the resolver package's own test fixture; it is redefined
// here since the resolver package's is unexported.
type widget struct {
	Name    string
	Partner *widget

	docs string
	id   string
}

func (w *widget) Doc() string               { return w.docs }
func (w *widget) PersistentID() string      { return w.id }
func (w *widget) SetPersistentID(id string) { w.id = id }

func newTestResolver(t *testing.T, dir string) *resolver.Resolver {
	t.Helper()
	reg := store.NewRegistry()
	reg.Register("kv", kv.NewBackendFactory())
	typeReg := codec.NewRegistry()
	typeReg.Register(&widget{})

	r, err := resolver.New(context.Background(), resolver.Options{
		PathSource: dir,
		Registry:   reg,
		Types:      typeReg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// putSchema writes a schema descriptor directly against dir's backing store,
// bypassing the Resolver the way a separate process would. No Resolver may
// hold dir's store open meanwhile (bbolt locks the file), and a Resolver
// binds the descriptor when it next loads the owning resource from the
// store, not when it serves that resource from its cache.
func putSchema(t *testing.T, dir, id, attr string, d schema.Descriptor) {
	t.Helper()
	reg := store.NewRegistry()
	reg.Register("kv", kv.NewBackendFactory())
	entries, err := store.ParsePath(dir, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	backend, err := reg.Open(context.Background(), entries[0], store.Options{})
	require.NoError(t, err)
	defer backend.Close()

	raw, err := schema.Encode(d)
	require.NoError(t, err)
	require.NoError(t, backend.PutSchema(context.Background(), id, attr, types.RawDescriptor(raw)))
}

func TestGetResolvesBareID(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := newTestResolver(t, dir)
	require.NoError(t, r.Put(ctx, "Bio.seq.Swissprot", &widget{Name: "swissprot", docs: "doc"}))

	p := pathproxy.New(r)
	obj, err := p.Get(ctx, "Bio.seq.Swissprot")
	require.NoError(t, err)
	assert.Equal(t, "swissprot", obj.(*widget).Name)
}

func TestGetWalksTrailingAttr(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := newTestResolver(t, dir)
	require.NoError(t, r.Put(ctx, "Bio.seq.Swissprot", &widget{Name: "swissprot", docs: "doc"}))
	require.NoError(t, r.Put(ctx, "Bio.taxon.NCBI", &widget{Name: "ncbi", docs: "doc"}))
	require.NoError(t, r.Close())

	putSchema(t, dir, "Bio.seq.Swissprot", "organism", schema.Descriptor{
		Kind: schema.KindDirect, TargetID: "Bio.taxon.NCBI",
	})

	r = newTestResolver(t, dir)
	p := pathproxy.New(r)
	obj, err := p.Get(ctx, "Bio.seq.Swissprot.organism")
	require.NoError(t, err)
	assert.Equal(t, "ncbi", obj.(*widget).Name)
}

func TestGetBacksOffThroughDottedIDComponents(t *testing.T) {
	// "Bio.seq.Swissprot" itself is a dotted resource ID with no attribute
	// suffix; Get must try the whole string as an ID before backing off.
	ctx := context.Background()
	dir := t.TempDir()
	r := newTestResolver(t, dir)
	require.NoError(t, r.Put(ctx, "Bio.seq.Swissprot", &widget{Name: "swissprot", docs: "doc"}))

	p := pathproxy.New(r)
	obj, err := p.Get(ctx, "Bio.seq.Swissprot")
	require.NoError(t, err)
	require.NotNil(t, obj)
}

func TestGetRejectsUnresolvableName(t *testing.T) {
	r := newTestResolver(t, t.TempDir())
	p := pathproxy.New(r)
	_, err := p.Get(context.Background(), "Nope.Nothing.Here")
	assert.Error(t, err)
}

func TestGetPropagatesAttrErrorPastValidResolve(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := newTestResolver(t, dir)
	require.NoError(t, r.Put(ctx, "Bio.seq.Swissprot", &widget{Name: "swissprot", docs: "doc"}))

	p := pathproxy.New(r)
	_, err := p.Get(ctx, "Bio.seq.Swissprot.nosuchattr")
	assert.Error(t, err)
}
