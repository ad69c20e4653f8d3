package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAndDescriptor(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Bind("Bio.seq.Swissprot", "organism", Descriptor{
		Kind:     KindDirect,
		TargetID: "Bio.taxon.NCBI",
	}))

	d, ok := g.Descriptor("Bio.seq.Swissprot", "organism")
	require.True(t, ok)
	assert.Equal(t, KindDirect, d.Kind)
	assert.Equal(t, "Bio.taxon.NCBI", d.TargetID)

	_, ok = g.Descriptor("Bio.seq.Swissprot", "missing")
	assert.False(t, ok)
}

func TestBindRejectsInvalidDescriptor(t *testing.T) {
	g := NewGraph()
	err := g.Bind("Bio.seq.Swissprot", "organism", Descriptor{Kind: KindInverse, TargetID: "x"})
	assert.Error(t, err)
}

func TestUnbindRemovesEmptyNode(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Bind("A", "attr", Descriptor{Kind: KindDirect, TargetID: "B"}))
	g.Unbind("A", "attr")
	assert.Empty(t, g.Attrs("A"))
}

func TestAttrsSorted(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Bind("A", "zeta", Descriptor{Kind: KindDirect, TargetID: "B"}))
	require.NoError(t, g.Bind("A", "alpha", Descriptor{Kind: KindDirect, TargetID: "C"}))
	assert.Equal(t, []string{"alpha", "zeta"}, g.Attrs("A"))
}

func TestIDsSortedAndDeduplicatedPerNode(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Bind("B", "x", Descriptor{Kind: KindDirect, TargetID: "Z"}))
	require.NoError(t, g.Bind("A", "y", Descriptor{Kind: KindDirect, TargetID: "Z"}))
	require.NoError(t, g.Bind("A", "z", Descriptor{Kind: KindDirect, TargetID: "Z"}))
	assert.Equal(t, []string{"A", "B"}, g.IDs())
}

func TestEdgesOnlyDirectAndItem(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Bind("A", "direct", Descriptor{Kind: KindDirect, TargetID: "B"}))
	require.NoError(t, g.Bind("A", "item", Descriptor{Kind: KindItem, TargetID: "C", ItemRule: "row"}))
	require.NoError(t, g.Bind("A", "inverse", Descriptor{Kind: KindInverse, TargetID: "D", InverseOf: "direct"}))

	edges := g.Edges("A")
	require.Len(t, edges, 2)
	assert.Equal(t, "direct", edges[0].Attr)
	assert.Equal(t, "B", edges[0].To)
	assert.Equal(t, "item", edges[1].Attr)
	assert.Equal(t, "C", edges[1].To)
}

func TestExportImportYAMLRoundTrip(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Bind("Bio.seq.Swissprot", "organism", Descriptor{Kind: KindDirect, TargetID: "Bio.taxon.NCBI"}))
	require.NoError(t, g.Bind("Bio.taxon.NCBI", "sequences", Descriptor{
		Kind: KindOneToMany, TargetID: "Bio.seq.Swissprot", InverseOf: "organism", Many: true,
	}))

	data, err := g.ExportYAML()
	require.NoError(t, err)

	g2 := NewGraph()
	require.NoError(t, g2.ImportYAML(data))

	d, ok := g2.Descriptor("Bio.seq.Swissprot", "organism")
	require.True(t, ok)
	assert.Equal(t, KindDirect, d.Kind)
	assert.Equal(t, "Bio.taxon.NCBI", d.TargetID)

	d2, ok := g2.Descriptor("Bio.taxon.NCBI", "sequences")
	require.True(t, ok)
	assert.Equal(t, KindOneToMany, d2.Kind)
	assert.True(t, d2.Many)
}

func TestReverseEdges(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Bind("Bio.taxon.NCBI", "sequences", Descriptor{
		Kind: KindOneToMany, TargetID: "Bio.seq.Swissprot", InverseOf: "organism", Many: true,
	}))
	require.NoError(t, g.Bind("Bio.seq.Swissprot.1", "organism", Descriptor{Kind: KindDirect, TargetID: "Bio.taxon.NCBI"}))
	require.NoError(t, g.Bind("Bio.seq.Swissprot.2", "organism", Descriptor{Kind: KindDirect, TargetID: "Bio.taxon.NCBI"}))
	require.NoError(t, g.Bind("Bio.seq.Swissprot.3", "organism", Descriptor{Kind: KindDirect, TargetID: "Bio.taxon.Other"}))

	ids := g.ReverseEdges("organism", "Bio.taxon.NCBI")
	assert.Equal(t, []string{"Bio.seq.Swissprot.1", "Bio.seq.Swissprot.2"}, ids)
}

func TestImportYAMLRejectsInvalidDescriptor(t *testing.T) {
	g := NewGraph()
	err := g.ImportYAML([]byte(`
- id: A
  attrs:
    bad:
      kind: Inverse
`))
	assert.Error(t, err)
}

func TestImportBootstrapJSONC(t *testing.T) {
	manifest := []byte(`{
  // organism link for every Swissprot entry
  "bindings": [
    {
      "id": "Bio.seq.Swissprot",
      "attr": "organism",
      "kind": "Direct",
      "descriptor": { "targetID": "Bio.taxon.NCBI" },
    },
  ],
}`)

	g := NewGraph()
	require.NoError(t, g.ImportBootstrapJSONC(manifest))

	d, ok := g.Descriptor("Bio.seq.Swissprot", "organism")
	require.True(t, ok)
	assert.Equal(t, KindDirect, d.Kind)
	assert.Equal(t, "Bio.taxon.NCBI", d.TargetID)
}

func TestImportBootstrapJSONCRejectsUnknownFields(t *testing.T) {
	manifest := []byte(`{
  "bindings": [
    { "id": "A", "attr": "x", "kind": "Direct", "descriptor": {"targetID": "B"}, "typo": true }
  ]
}`)

	g := NewGraph()
	assert.Error(t, g.ImportBootstrapJSONC(manifest))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := Descriptor{Kind: KindManyToMany, TargetID: "Bio.seq.Swissprot", InverseOf: "orthologs", Many: true}
	raw, err := Encode(d)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	err := Descriptor{Kind: "Bogus"}.Validate()
	assert.Error(t, err)
}
