package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteCascadesOwnSchemaEntries(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	r := newTestResolver(t, dir)

	require.NoError(t, r.Put(ctx, "T.one", &widget{Name: "one", docs: "doc"}))
	require.NoError(t, r.Put(ctx, "T.two", &widget{Name: "two", docs: "doc"}))
	require.NoError(t, r.DeclareInverse(ctx, "", "T.one", "T.two"))

	backend, err := r.writableStore("")
	require.NoError(t, err)

	ok, err := r.Delete(ctx, "", "T.one")
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := backend.GetSchema(ctx, "T.one")
	require.NoError(t, err)
	assert.False(t, found, "T.one's own schema entry should be gone")

	assert.Empty(t, r.graph.Attrs("T.one"))
}

func TestDeleteUndoesInverseReverseSide(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	r := newTestResolver(t, dir)

	require.NoError(t, r.Put(ctx, "T.one", &widget{Name: "one", docs: "doc"}))
	require.NoError(t, r.Put(ctx, "T.two", &widget{Name: "two", docs: "doc"}))
	require.NoError(t, r.DeclareInverse(ctx, "", "T.one", "T.two"))

	backend, err := r.writableStore("")
	require.NoError(t, err)

	_, err = r.Delete(ctx, "", "T.one")
	require.NoError(t, err)

	entry, found, err := backend.GetSchema(ctx, "T.two")
	require.NoError(t, err)
	if found {
		_, stillBound := entry["inverseDB"]
		assert.False(t, stillBound, "T.two's reverse inverseDB pointer should be undone")
	}

	_, stillBound := r.graph.Descriptor("T.two", "inverseDB")
	assert.False(t, stillBound)
}

func TestDeleteMissingResourceStillReportsFalse(t *testing.T) {
	r := newTestResolver(t, t.TempDir())
	ok, err := r.Delete(context.Background(), "", "T.ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}
