package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/types"
)

// Store is a read-only Remote RPC Store client: every request is dispatched
// over a single websocket connection and correlated to its Response by
// RequestID. Connect failures are retried with exponential backoff (for up
// to 30s) when the Store is opened. A connection that drops afterwards is
// not re-established: later calls fail.
type Store struct {
	url   string
	layer string

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Response

	dialCtx    context.Context
	dialCancel context.CancelFunc
}

// Open dials url (ws:// or wss://) and starts the read loop. layer is the
// default layer name this Store would like to be auto-registered under
// ("remote").
func Open(ctx context.Context, url, layer string) (*Store, error) {
	s := &Store{url: url, layer: layer, pending: make(map[string]chan Response)}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) connect(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var conn *websocket.Conn
	err := backoff.Retry(func() error {
		c, _, err := websocket.Dial(ctx, s.url, nil)
		if err != nil {
			return fmt.Errorf("remote: dial %s: %w", s.url, err)
		}
		conn = c
		return nil
	}, bo)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreIO, err)
	}

	dialCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.dialCtx = dialCtx
	s.dialCancel = cancel
	s.mu.Unlock()

	go s.readLoop(dialCtx, conn)
	return nil
}

func (s *Store) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.failPending(err)
			return
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		s.mu.Lock()
		ch, ok := s.pending[resp.RequestID]
		if ok {
			delete(s.pending, resp.RequestID)
		}
		s.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (s *Store) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.pending {
		ch <- Response{RequestID: id, Success: false, Error: err.Error()}
		delete(s.pending, id)
	}
}

func (s *Store) call(ctx context.Context, op string, args any) (Response, error) {
	argBytes, err := json.Marshal(args)
	if err != nil {
		return Response{}, fmt.Errorf("remote: marshal args: %w", err)
	}
	req := Request{Operation: op, Args: argBytes, RequestID: uuid.NewString()}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("remote: marshal request: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	ch := make(chan Response, 1)
	s.pending[req.RequestID] = ch
	s.mu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, reqBytes); err != nil {
		s.mu.Lock()
		delete(s.pending, req.RequestID)
		s.mu.Unlock()
		return Response{}, fmt.Errorf("%w: remote write: %v", types.ErrStoreIO, err)
	}

	select {
	case resp := <-ch:
		if !resp.Success {
			return Response{}, fmt.Errorf("%w: remote: %s", types.ErrStoreIO, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Get issues an OpGet RPC.
func (s *Store) Get(ctx context.Context, id string) (store.Record, bool, error) {
	resp, err := s.call(ctx, OpGet, GetArgs{ID: id})
	if err != nil {
		return store.Record{}, false, err
	}
	var res GetResult
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		return store.Record{}, false, fmt.Errorf("remote: decode get result: %w", err)
	}
	if !res.Found {
		return store.Record{}, false, nil
	}
	return store.Record{
		Payload: res.Payload,
		Meta:    types.Meta{Doc: res.Doc, CreatedBy: res.CreatedBy, LocationKey: res.LocationKey, PayloadSize: len(res.Payload)},
	}, true, nil
}

// Put always fails: the Remote RPC Store is read-only.
func (s *Store) Put(context.Context, string, []byte, types.Meta) error {
	return types.ErrImmutableStore
}

// Delete always fails: the Remote RPC Store is read-only.
func (s *Store) Delete(context.Context, string) (bool, error) {
	return false, types.ErrImmutableStore
}

// ListPrefix issues an OpListPrefix RPC.
func (s *Store) ListPrefix(ctx context.Context, prefix string, withMeta bool) ([]string, []types.Meta, error) {
	resp, err := s.call(ctx, OpListPrefix, ListPrefixArgs{Prefix: prefix, WithMeta: withMeta})
	if err != nil {
		return nil, nil, err
	}
	var res ListPrefixResult
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		return nil, nil, fmt.Errorf("remote: decode listprefix result: %w", err)
	}
	var metas []types.Meta
	if withMeta {
		metas = make([]types.Meta, len(res.Docs))
		for i, d := range res.Docs {
			metas[i] = types.Meta{Doc: d}
		}
	}
	return res.IDs, metas, nil
}

// GetSchema issues an OpGetSchema RPC.
func (s *Store) GetSchema(ctx context.Context, id string) (types.SchemaEntry, bool, error) {
	resp, err := s.call(ctx, OpGetSchema, GetSchemaArgs{ID: id})
	if err != nil {
		return nil, false, err
	}
	var res GetSchemaResult
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		return nil, false, fmt.Errorf("remote: decode getschema result: %w", err)
	}
	if !res.Found {
		return nil, false, nil
	}
	entry := types.SchemaEntry{}
	for k, v := range res.Entry {
		entry[k] = types.RawDescriptor(v)
	}
	return entry, true, nil
}

// PutSchema always fails: the Remote RPC Store is read-only.
func (s *Store) PutSchema(context.Context, string, string, types.RawDescriptor) error {
	return types.ErrImmutableStore
}

// DelSchema always fails: the Remote RPC Store is read-only.
func (s *Store) DelSchema(context.Context, string, string) error {
	return types.ErrImmutableStore
}

// RegisterServices always fails: the Remote RPC Store is read-only.
func (s *Store) RegisterServices(context.Context, string, map[string]store.Record) error {
	return types.ErrImmutableStore
}

// Roots issues an OpRoots RPC.
func (s *Store) Roots(ctx context.Context) ([]string, error) {
	resp, err := s.call(ctx, OpRoots, struct{}{})
	if err != nil {
		return nil, err
	}
	var res RootsResult
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		return nil, fmt.Errorf("remote: decode roots result: %w", err)
	}
	return res.Roots, nil
}

// LayerName returns the layer this Store would like to be auto-registered
// under ("remote").
func (s *Store) LayerName() string { return s.layer }

// ReadOnly always reports true.
func (s *Store) ReadOnly() bool { return true }

// Version issues an OpVersion RPC.
func (s *Store) Version(ctx context.Context) (types.Version, error) {
	resp, err := s.call(ctx, OpVersion, struct{}{})
	if err != nil {
		return types.Version{}, err
	}
	var res VersionResult
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		return types.Version{}, fmt.Errorf("remote: decode version result: %w", err)
	}
	return types.Version(res.Version), nil
}

// Close tears down the websocket connection and its read loop.
func (s *Store) Close() error {
	s.mu.Lock()
	conn := s.conn
	cancel := s.dialCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "remote store closed")
}
