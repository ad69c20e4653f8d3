package remote

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/basepair/resourcereg/internal/store"
)

// Server exposes a single store.Store over websocket connections, answering
// the same read-only operation set the client.Store issues.
type Server struct {
	backend store.Store
	log     zerolog.Logger
}

// NewServer wraps backend for remote serving. backend's own ReadOnly policy
// is irrelevant: the remote protocol only ever issues read operations.
func NewServer(backend store.Store, log zerolog.Logger) *Server {
	return &Server{backend: backend, log: log}
}

// ServeHTTP upgrades the connection and dispatches requests until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("remote: accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "server done")

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		resp := s.dispatch(ctx, req)
		respBytes, err := json.Marshal(resp)
		if err != nil {
			s.log.Error().Err(err).Msg("remote: marshal response failed")
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, respBytes); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	data, err := s.handle(ctx, req)
	if err != nil {
		return Response{RequestID: req.RequestID, Success: false, Error: err.Error()}
	}
	return Response{RequestID: req.RequestID, Success: true, Data: data}
}

func (s *Server) handle(ctx context.Context, req Request) (json.RawMessage, error) {
	switch req.Operation {
	case OpGet:
		var args GetArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		rec, ok, err := s.backend.Get(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		res := GetResult{Found: ok}
		if ok {
			res.Payload = rec.Payload
			res.Doc = rec.Meta.Doc
			res.CreatedBy = rec.Meta.CreatedBy
			res.LocationKey = rec.Meta.LocationKey
		}
		return json.Marshal(res)

	case OpListPrefix:
		var args ListPrefixArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		ids, metas, err := s.backend.ListPrefix(ctx, args.Prefix, args.WithMeta)
		if err != nil {
			return nil, err
		}
		res := ListPrefixResult{IDs: ids}
		if args.WithMeta {
			res.Docs = make([]string, len(metas))
			for i, m := range metas {
				res.Docs[i] = m.Doc
			}
		}
		return json.Marshal(res)

	case OpGetSchema:
		var args GetSchemaArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		entry, ok, err := s.backend.GetSchema(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		res := GetSchemaResult{Found: ok}
		if ok {
			res.Entry = make(map[string]json.RawMessage, len(entry))
			for k, v := range entry {
				res.Entry[k] = json.RawMessage(v)
			}
		}
		return json.Marshal(res)

	case OpRoots:
		roots, err := s.backend.Roots(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(RootsResult{Roots: roots})

	case OpVersion:
		v, err := s.backend.Version(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(VersionResult{Version: [3]int(v)})

	default:
		return nil, &unknownOperationError{op: req.Operation}
	}
}

type unknownOperationError struct{ op string }

func (e *unknownOperationError) Error() string {
	return "remote: unknown operation " + e.op
}
