package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fluxdbc/internal/security"
)

type queryResponse struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int64    `json:"row_count"`
	Truncated bool     `json:"truncated,omitempty"`
}

// HandleQuery serves one HMAC-signed query and returns the rows as JSON.
// Machine clients use it when a websocket session is not worth setting up.
func (s *Server) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	err = security.VerifySignature(s.cfg.APISecret, r.Method, r.URL.Path, string(body),
		r.Header.Get("X-Timestamp"), r.Header.Get("X-Signature"))
	if err != nil {
		slog.Warn("query signature rejected", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	factory, ok := s.resolve(req.Source)
	if !ok {
		http.Error(w, "Unknown datasource", http.StatusNotFound)
		return
	}
	if err := security.ValidateReadOnly(req.Query); err != nil {
		http.Error(w, "Query rejected: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	conn, err := factory.Create().Await(ctx)
	if err != nil {
		slog.Error("query connect failed", "source", req.Source, "error", err)
		http.Error(w, "Datasource unavailable", http.StatusBadGateway)
		return
	}
	defer conn.Close(context.Background())

	res, err := conn.Execute(ctx, req.Query)
	if err != nil {
		http.Error(w, "Query failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	stream, err := res.Map(copyRow)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	defer stream.Close(context.Background())

	resp := queryResponse{
		Columns: stream.Metadata().ColumnNames(),
		Rows:    [][]any{},
	}
	for stream.Next(ctx) {
		resp.Rows = append(resp.Rows, jsonValues(stream.Value().([]any)))
		resp.RowCount++
		if resp.RowCount >= s.cfg.MaxRows {
			resp.Truncated = true
			break
		}
	}
	if err := stream.Err(); err != nil {
		slog.Error("query stream failed", "source", req.Source, "error", err)
		http.Error(w, "Query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("query served", "source", req.Source, "rows", resp.RowCount,
		"took", time.Since(start).Round(time.Millisecond))
	json.NewEncoder(w).Encode(resp)
}

// jsonValues makes row values JSON-friendly; drivers hand text back as
// []byte, which encoding/json would base64.
func jsonValues(values []any) []any {
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values
}
