package gateway

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"fluxdbc"
	"fluxdbc/internal/security"
)

// Null marks a NULL column value in a row frame. Gob cannot carry nil
// interface values, so the gateway substitutes this and clients map it back.
type Null struct{}

func init() {
	gob.Register(Null{})
}

// HandleStream upgrades to a websocket and serves queries over it. Requests
// arrive as JSON text messages; results leave as gob-encoded Frames. The
// session lasts until the client disconnects.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	keyID, err := security.VerifyToken(s.cfg.JWTSecret, bearerToken(r))
	if err != nil {
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("stream upgrade failed", "error", err)
		return
	}
	s.sessions.register(conn, keyID)
	defer s.sessions.unregister(conn)

	enc := gob.NewEncoder(&wsWriter{conn: conn})
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req QueryRequest
		if err := json.Unmarshal(message, &req); err != nil {
			if enc.Encode(&Frame{Kind: FrameError, Err: "malformed request"}) != nil {
				return
			}
			continue
		}

		if err := s.serveQuery(r.Context(), enc, req); err != nil {
			slog.Error("stream write failed", "session_key", keyID, "id", req.ID, "error", err)
			return
		}
	}
}

// serveQuery runs one request and writes its frames. Query failures become
// error frames and leave the session usable; a returned error means the
// socket itself failed.
func (s *Server) serveQuery(parent context.Context, enc *gob.Encoder, req QueryRequest) error {
	fail := func(err error) error {
		return enc.Encode(&Frame{ID: req.ID, Kind: FrameError, Err: err.Error()})
	}

	factory, ok := s.resolve(req.Source)
	if !ok {
		return fail(fmt.Errorf("unknown datasource %q", req.Source))
	}
	if err := security.ValidateReadOnly(req.Query); err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.QueryTimeout)
	defer cancel()

	conn, err := factory.Create().Await(ctx)
	if err != nil {
		return fail(fmt.Errorf("connect: %w", err))
	}
	defer conn.Close(context.Background())

	res, err := conn.Execute(ctx, req.Query)
	if err != nil {
		return fail(err)
	}
	stream, err := res.Map(copyRow)
	if err != nil {
		return fail(err)
	}
	defer stream.Close(context.Background())

	if err := enc.Encode(&Frame{ID: req.ID, Kind: FrameColumns, Columns: stream.Metadata().Columns()}); err != nil {
		return err
	}

	var rows int64
	truncated := false
	for stream.Next(ctx) {
		if err := enc.Encode(&Frame{ID: req.ID, Kind: FrameRow, Values: gobValues(stream.Value().([]any))}); err != nil {
			return err
		}
		rows++
		if rows >= s.cfg.MaxRows {
			truncated = true
			break
		}
	}
	if err := stream.Err(); err != nil {
		return fail(err)
	}
	return enc.Encode(&Frame{ID: req.ID, Kind: FrameDone, Rows: rows, Truncated: truncated})
}

// bearerToken pulls the session token from the Authorization header, or from
// the token query parameter for browser websocket clients, which cannot set
// headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return tok
		}
	}
	return r.URL.Query().Get("token")
}

// copyRow projects a row into a standalone []any. Cursors may reuse both the
// value slice and any []byte cells between rows.
func copyRow(row fluxdbc.Row, meta *fluxdbc.RowMetadata) (any, error) {
	out := make([]any, meta.Len())
	for i := range out {
		v, err := row.Get(i)
		if err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		out[i] = v
	}
	return out, nil
}

func gobValues(values []any) []any {
	for i, v := range values {
		if v == nil {
			values[i] = Null{}
		}
	}
	return values
}
