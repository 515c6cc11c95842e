package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"fluxdbc"
	_ "fluxdbc/driver/mysql"
	_ "fluxdbc/driver/pgx"
	_ "fluxdbc/driver/postgres"
	"fluxdbc/internal/security"
)

// Seeds demo data for the gateway and bench scripts, working entirely
// through the connection contract. The statements stick to portable SQL so
// the same seeder runs against MySQL and Postgres.
func main() {
	var (
		rawURL = flag.String("url", os.Getenv("FLUXDBC_URL"), "Connection URL")
		users  = flag.Int("users", 10000, "Number of demo users to seed")
		keyID  = flag.String("key-id", "", "Also store an API key row under this id")
		key    = flag.String("key", "", "Secret for -key-id")
	)
	flag.Parse()

	if *rawURL == "" {
		slog.Error("no connection URL: pass -url or set FLUXDBC_URL")
		os.Exit(1)
	}

	opts, err := fluxdbc.ParseURL(*rawURL)
	if err != nil {
		slog.Error("connection URL unusable", "error", err)
		os.Exit(1)
	}
	factory, err := fluxdbc.Discover(opts)
	if err != nil {
		slog.Error("no driver for URL", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn := waitForDatabase(ctx, factory)
	defer conn.Close(ctx)

	slog.Info("connected", "product", conn.Metadata().ProductName())

	mustExec(ctx, conn, `CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		name VARCHAR(64),
		email VARCHAR(128),
		score DOUBLE PRECISION
	)`)
	mustExec(ctx, conn, `CREATE TABLE IF NOT EXISTS api_keys (
		key_id VARCHAR(64) PRIMARY KEY,
		key_hash VARCHAR(255)
	)`)

	if have := countRows(ctx, conn, "users"); have >= int64(*users) {
		slog.Info("users already seeded", "count", have)
	} else {
		seedUsers(ctx, conn, *users)
	}

	if *keyID != "" && *key != "" {
		hash, err := security.HashKey(*key)
		if err != nil {
			slog.Error("hash key", "error", err)
			os.Exit(1)
		}
		mustExec(ctx, conn, fmt.Sprintf(
			"INSERT INTO api_keys (key_id, key_hash) VALUES ('%s', '%s')", *keyID, hash))
		slog.Info("api key stored", "key_id", *keyID)
	}

	slog.Info("seeding complete")
}

// waitForDatabase retries until a connection validates remotely; fresh
// containers take a few seconds to accept connections.
func waitForDatabase(ctx context.Context, factory fluxdbc.ConnectionFactory) fluxdbc.Connection {
	for i := 0; i < 30; i++ {
		conn, err := factory.Create().Await(ctx)
		if err == nil {
			if conn.Validate(ctx, fluxdbc.ValidationRemote) {
				return conn
			}
			conn.Close(ctx)
		}
		slog.Info("waiting for database...", "attempt", i+1, "error", err)
		time.Sleep(1 * time.Second)
	}
	slog.Error("database never became ready")
	os.Exit(1)
	return nil
}

func seedUsers(ctx context.Context, conn fluxdbc.Connection, total int) {
	slog.Info("seeding users", "count", total)
	start := time.Now()
	batchSize := 500

	for i := 0; i < total; i += batchSize {
		// One transaction per batch.
		if err := conn.Begin(ctx); err != nil {
			slog.Error("begin batch", "error", err)
			os.Exit(1)
		}

		var sb strings.Builder
		sb.WriteString("INSERT INTO users (id, name, email, score) VALUES ")
		for j := 0; j < batchSize && i+j < total; j++ {
			idx := i + j + 1
			if j > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "(%d, 'User%d', 'user%d@example.com', %.1f)", idx, idx, idx, float64(idx)*0.1)
		}
		mustExec(ctx, conn, sb.String())

		if err := conn.Commit(ctx); err != nil {
			slog.Error("commit batch", "error", err)
			os.Exit(1)
		}

		if (i+batchSize)%5000 == 0 {
			fmt.Printf("\rSeeding users: %d/%d", i+batchSize, total)
		}
	}
	fmt.Println()
	slog.Info("user seeding complete", "duration", time.Since(start).Round(time.Millisecond))
}

// mustExec runs a statement and consumes its result as an update count.
func mustExec(ctx context.Context, conn fluxdbc.Connection, query string) int64 {
	res, err := conn.Execute(ctx, query)
	if err != nil {
		slog.Error("statement failed", "error", err, "query", firstLine(query))
		os.Exit(1)
	}
	n, err := res.RowsUpdated(ctx)
	if err != nil {
		slog.Error("consume result", "error", err)
		os.Exit(1)
	}
	return n
}

// countRows reads COUNT(*) through the row-stream path.
func countRows(ctx context.Context, conn fluxdbc.Connection, table string) int64 {
	res, err := conn.Execute(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return 0
	}
	stream, err := res.Map(func(row fluxdbc.Row, _ *fluxdbc.RowMetadata) (any, error) {
		return row.Get(0)
	})
	if err != nil {
		return 0
	}
	defer stream.Close(ctx)

	if !stream.Next(ctx) {
		return 0
	}
	switch v := stream.Value().(type) {
	case int64:
		return v
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func firstLine(q string) string {
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		return q[:i] + "..."
	}
	return q
}
