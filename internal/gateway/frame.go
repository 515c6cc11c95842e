// Package gateway serves database queries over HTTP and websockets. Clients
// trade an API key for a session token at /auth, stream result frames over a
// websocket at /stream, or make HMAC-signed one-shot queries at /query.
package gateway

import (
	"encoding/gob"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"fluxdbc"
)

// Frame kinds, in the order a result produces them: one columns frame, zero
// or more row frames, then a done or error frame.
const (
	FrameColumns = "columns"
	FrameRow     = "row"
	FrameDone    = "done"
	FrameError   = "error"
)

// Frame is one gob-encoded message on a stream session. ID echoes the id of
// the request that produced it.
type Frame struct {
	ID   string
	Kind string

	// Columns is set on columns frames.
	Columns []fluxdbc.ColumnMetadata

	// Values is set on row frames.
	Values []any

	// Rows is the total row count, set on done frames. Truncated reports that
	// the row limit cut the result short.
	Rows      int64
	Truncated bool

	// Err is set on error frames.
	Err string
}

// QueryRequest is the JSON text message a client sends on a stream session.
// An empty Source resolves to the only configured datasource, when there is
// exactly one.
type QueryRequest struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Query  string `json:"query"`
}

func init() {
	// Concrete types that may appear in Frame.Values.
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
	gob.Register([]byte{})
	gob.Register(time.Time{})
}

// wsWriter adapts a websocket connection to io.Writer; every Write becomes
// one binary message.
type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WSReader adapts a websocket connection to io.Reader, advancing to the next
// message when the current one is exhausted. Clients wrap it around a
// gob.Decoder to read Frames.
type WSReader struct {
	Conn   *websocket.Conn
	reader io.Reader
}

func (r *WSReader) Read(p []byte) (int, error) {
	if r.reader == nil {
		_, reader, err := r.Conn.NextReader()
		if err != nil {
			return 0, err
		}
		r.reader = reader
	}

	n, err := r.reader.Read(p)
	if err == io.EOF {
		r.reader = nil
		return r.Read(p)
	}
	return n, err
}
