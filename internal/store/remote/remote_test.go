package remote

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basepair/resourcereg/internal/store/kv"
	"github.com/basepair/resourcereg/internal/types"
)

func startTestServer(t *testing.T) (url string, backend *kv.Store) {
	t.Helper()
	backend, err := kv.Open(t.TempDir(), "system", false)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	srv := NewServer(backend, zerolog.Nop())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http"), backend
}

func TestClientGetRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url, backend := startTestServer(t)
	require.NoError(t, backend.Put(ctx, "Bio.seq.Swissprot", []byte(`{"n":1}`), types.Meta{Doc: "swissprot"}))

	client, err := Open(ctx, url, "remote")
	require.NoError(t, err)
	defer client.Close()

	rec, ok, err := client.Get(ctx, "Bio.seq.Swissprot")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"n":1}`), rec.Payload)
	assert.Equal(t, "swissprot", rec.Meta.Doc)

	_, ok, err = client.Get(ctx, "Bio.seq.Missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientIsReadOnly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url, _ := startTestServer(t)
	client, err := Open(ctx, url, "remote")
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.ReadOnly())
	assert.ErrorIs(t, client.Put(ctx, "x", nil, types.Meta{}), types.ErrImmutableStore)
	_, err = client.Delete(ctx, "x")
	assert.ErrorIs(t, err, types.ErrImmutableStore)
	assert.ErrorIs(t, client.PutSchema(ctx, "x", "a", nil), types.ErrImmutableStore)
	assert.ErrorIs(t, client.DelSchema(ctx, "x", "a"), types.ErrImmutableStore)
	assert.ErrorIs(t, client.RegisterServices(ctx, "loc", nil), types.ErrImmutableStore)
}

func TestClientRootsAndVersion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url, backend := startTestServer(t)
	require.NoError(t, backend.Put(ctx, "Bio.seq.Swissprot", []byte("x"), types.Meta{Doc: "d"}))

	client, err := Open(ctx, url, "remote")
	require.NoError(t, err)
	defer client.Close()

	roots, err := client.Roots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bio"}, roots)

	v, err := client.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.CurrentVersion, v)
}

func TestClientListPrefixAndSchema(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url, backend := startTestServer(t)
	require.NoError(t, backend.Put(ctx, "Bio.seq.Swissprot", []byte("x"), types.Meta{Doc: "d"}))
	require.NoError(t, backend.PutSchema(ctx, "Bio.seq.Swissprot", "organism", types.RawDescriptor(`{"kind":"Direct"}`)))

	client, err := Open(ctx, url, "remote")
	require.NoError(t, err)
	defer client.Close()

	ids, _, err := client.ListPrefix(ctx, "Bio.", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bio.seq.Swissprot"}, ids)

	entry, ok, err := client.GetSchema(ctx, "Bio.seq.Swissprot")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, entry, "organism")
}
