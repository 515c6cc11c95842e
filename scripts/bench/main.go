package main

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"fluxdbc/internal/gateway"
)

type result struct {
	firstFrame time.Duration
	total      time.Duration
	rows       int64
	err        error
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "Gateway base URL")
		keyID    = flag.String("key-id", "", "API key id")
		key      = flag.String("key", "", "API key secret")
		source   = flag.String("source", "", "Datasource name (empty uses the gateway default)")
		query    = flag.String("query", "SELECT 1", "Query to run")
		sessions = flag.Int("sessions", 10, "Concurrent stream sessions")
		requests = flag.Int("requests", 100, "Total queries across all sessions")
	)
	flag.Parse()

	if *keyID == "" || *key == "" {
		fmt.Fprintln(os.Stderr, "bench needs -key-id and -key")
		os.Exit(2)
	}

	token, err := authenticate(*baseURL, *keyID, *key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=======================================================\n")
	fmt.Printf("Sessions: %d | Requests: %d | Query: %s\n", *sessions, *requests, *query)
	fmt.Printf("=======================================================\n")

	var (
		mu      sync.Mutex
		results []result
		next    atomic.Int64
	)
	start := time.Now()

	var g errgroup.Group
	for i := 0; i < *sessions; i++ {
		g.Go(func() error {
			conn, err := dialStream(*baseURL, token)
			if err != nil {
				return err
			}
			defer conn.Close()
			dec := gob.NewDecoder(&gateway.WSReader{Conn: conn})

			for {
				n := next.Add(1)
				if n > int64(*requests) {
					return nil
				}
				res := runQuery(conn, dec, strconv.FormatInt(n, 10), *source, *query)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				if n%10 == 0 {
					fmt.Print(".")
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nsession failed: %v\n", err)
		os.Exit(1)
	}
	totalTime := time.Since(start)
	fmt.Println()

	report(results, totalTime)
}

func authenticate(baseURL, keyID, key string) (string, error) {
	body, _ := json.Marshal(map[string]string{"key_id": keyID, "key": key})
	resp, err := http.Post(baseURL+"/auth", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func dialStream(baseURL, token string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/stream"
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	return conn, err
}

func runQuery(conn *websocket.Conn, dec *gob.Decoder, id, source, query string) result {
	payload, _ := json.Marshal(gateway.QueryRequest{ID: id, Source: source, Query: query})
	start := time.Now()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return result{err: err}
	}

	var res result
	for {
		var f gateway.Frame
		if err := dec.Decode(&f); err != nil {
			res.err = err
			return res
		}
		switch f.Kind {
		case gateway.FrameColumns:
			res.firstFrame = time.Since(start)
		case gateway.FrameRow:
			res.rows++
		case gateway.FrameDone:
			res.total = time.Since(start)
			return res
		case gateway.FrameError:
			res.err = fmt.Errorf("%s", f.Err)
			return res
		}
	}
}

func report(results []result, totalTime time.Duration) {
	if len(results) == 0 {
		fmt.Println("no results")
		return
	}

	var first, total []time.Duration
	var rows int64
	failures := 0
	for _, r := range results {
		if r.err != nil {
			failures++
			continue
		}
		first = append(first, r.firstFrame)
		total = append(total, r.total)
		rows += r.rows
	}

	fmt.Printf("\nRESULTS:\n")
	fmt.Printf("Total Duration: %v\n", totalTime)
	fmt.Printf("Throughput: %.2f queries/sec\n", float64(len(results))/totalTime.Seconds())
	fmt.Printf("Rows Streamed: %d\n", rows)
	fmt.Printf("Success Rate: %.1f%%\n", float64(len(results)-failures)/float64(len(results))*100)
	if len(first) > 0 {
		fmt.Printf("First Frame (P50/P95/P99): %v / %v / %v\n",
			percentile(first, 0.50), percentile(first, 0.95), percentile(first, 0.99))
	}
	if len(total) > 0 {
		fmt.Printf("Completion  (P50/P95/P99): %v / %v / %v\n",
			percentile(total, 0.50), percentile(total, 0.95), percentile(total, 0.99))
	}
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	idx := int(float64(len(latencies)) * p)
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	return latencies[idx]
}
