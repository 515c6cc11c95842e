// Package redis is a Redis driver. Importing it registers the driver:
//
//	import _ "fluxdbc/driver/redis"
//
// Execute takes textual commands in the redis-cli style. Commands that read
// produce row results, commands that write report affected keys:
//
//	GET session:41
//	SET session:41 "signed in"
//	DEL session:41 session:42
//	HGETALL user:7
//	KEYS session:*
//
// A GET on a missing key is an empty result, not an error. HGETALL and KEYS
// rows come back sorted so results are stable.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-redis/redis/v8"

	"fluxdbc"
)

const driverName = "redis"

// ErrTransactionsUnsupported is returned by the transaction methods; MULTI
// queues do not map onto the connection contract.
var ErrTransactionsUnsupported = errors.New("redis: transactions not supported")

func init() {
	fluxdbc.Register(&Driver{})
}

// Driver matches option bags whose driver option is "redis".
type Driver struct{}

func (*Driver) Name() string { return driverName }

func (*Driver) Supports(opts *fluxdbc.Options) bool {
	name, ok := fluxdbc.Value(opts, fluxdbc.DriverName)
	return ok && name == driverName
}

func (*Driver) NewFactory(opts *fluxdbc.Options) (fluxdbc.ConnectionFactory, error) {
	ro, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Factory{
		opts: ro,
		meta: fluxdbc.NewFactoryMetadata(driverName),
	}, nil
}

// clientOptions maps the option bag onto go-redis options. The database
// option selects the numeric database index.
func clientOptions(opts *fluxdbc.Options) (*redis.Options, error) {
	host := "localhost"
	if h, ok := fluxdbc.Value(opts, fluxdbc.Host); ok {
		host = h
	}
	port := 6379
	if p, ok := fluxdbc.Value(opts, fluxdbc.Port); ok {
		port = p
	}

	ro := &redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
		// One session per connection; pooling belongs to wrappers.
		PoolSize: 1,
	}
	if user, ok := fluxdbc.Value(opts, fluxdbc.User); ok {
		ro.Username = user
	}
	if pass, ok := fluxdbc.Value(opts, fluxdbc.Password); ok {
		ro.Password = pass
	}
	if db, ok := fluxdbc.Value(opts, fluxdbc.Database); ok {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("redis: database must be a numeric index, got %q", db)
		}
		ro.DB = n
	}
	if t, ok := fluxdbc.Value(opts, fluxdbc.ConnectTimeout); ok {
		ro.DialTimeout = t
	}
	if ssl, ok := fluxdbc.Value(opts, fluxdbc.SSL); ok && ssl {
		ro.TLSConfig = &tls.Config{ServerName: host}
	}
	return ro, nil
}

// Factory mints Redis connections, one client per connection.
type Factory struct {
	opts *redis.Options
	meta *fluxdbc.FactoryMetadata
}

func (f *Factory) Metadata() *fluxdbc.FactoryMetadata { return f.meta }

func (f *Factory) Create() *fluxdbc.ConnectionRequest {
	return fluxdbc.NewConnectionRequest(f.dial)
}

func (f *Factory) dial(ctx context.Context) (fluxdbc.Connection, error) {
	client := redis.NewClient(f.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	version := ""
	if info, err := client.Info(ctx, "server").Result(); err == nil {
		version = infoVersion(info)
	}
	return &Conn{
		client: client,
		meta:   fluxdbc.NewConnectionMetadata("Redis", version),
	}, nil
}

// infoVersion pulls redis_version out of an INFO server section.
func infoVersion(info string) string {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "redis_version:"); ok {
			return v
		}
	}
	return ""
}

// Conn is one Redis session.
type Conn struct {
	client *redis.Client
	meta   *fluxdbc.ConnectionMetadata
	closed atomic.Bool
}

func (c *Conn) Execute(ctx context.Context, query string) (*fluxdbc.Result, error) {
	if c.closed.Load() {
		return nil, fluxdbc.ErrConnectionClosed
	}
	args, err := splitCommand(query)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("redis: empty command")
	}

	switch cmd := strings.ToUpper(args[0]); cmd {
	case "PING":
		reply, err := c.client.Ping(ctx).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: ping: %w", err)
		}
		return rowsResult([]string{"reply"}, [][]any{{reply}}), nil

	case "GET":
		if len(args) != 2 {
			return nil, errors.New("redis: GET takes exactly one key")
		}
		val, err := c.client.Get(ctx, args[1]).Result()
		if errors.Is(err, redis.Nil) {
			// A missing key is emptiness, not failure.
			return rowsResult([]string{"key", "value"}, nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis: get: %w", err)
		}
		return rowsResult([]string{"key", "value"}, [][]any{{args[1], val}}), nil

	case "SET":
		if len(args) != 3 {
			return nil, errors.New("redis: SET takes a key and a value")
		}
		if err := c.client.Set(ctx, args[1], args[2], 0).Err(); err != nil {
			return nil, fmt.Errorf("redis: set: %w", err)
		}
		return fluxdbc.NewUpdateResult(1), nil

	case "DEL":
		if len(args) < 2 {
			return nil, errors.New("redis: DEL takes at least one key")
		}
		n, err := c.client.Del(ctx, args[1:]...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: del: %w", err)
		}
		return fluxdbc.NewUpdateResult(n), nil

	case "HGETALL":
		if len(args) != 2 {
			return nil, errors.New("redis: HGETALL takes exactly one key")
		}
		fields, err := c.client.HGetAll(ctx, args[1]).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: hgetall: %w", err)
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]any, len(names))
		for i, name := range names {
			rows[i] = []any{name, fields[name]}
		}
		return rowsResult([]string{"field", "value"}, rows), nil

	case "KEYS":
		if len(args) != 2 {
			return nil, errors.New("redis: KEYS takes exactly one pattern")
		}
		keys, err := c.client.Keys(ctx, args[1]).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: keys: %w", err)
		}
		sort.Strings(keys)
		rows := make([][]any, len(keys))
		for i, key := range keys {
			rows[i] = []any{key}
		}
		return rowsResult([]string{"key"}, rows), nil

	default:
		return nil, fmt.Errorf("redis: unsupported command %q", cmd)
	}
}

func rowsResult(names []string, rows [][]any) *fluxdbc.Result {
	cols := make([]fluxdbc.ColumnMetadata, len(names))
	for i, name := range names {
		cols[i] = fluxdbc.ColumnMetadata{Name: name, DatabaseTypeName: "STRING"}
	}
	return fluxdbc.NewQueryResult(&memCursor{cols: cols, rows: rows})
}

func (c *Conn) Begin(ctx context.Context) error    { return ErrTransactionsUnsupported }
func (c *Conn) Commit(ctx context.Context) error   { return ErrTransactionsUnsupported }
func (c *Conn) Rollback(ctx context.Context) error { return ErrTransactionsUnsupported }

func (c *Conn) SetIsolation(ctx context.Context, level fluxdbc.IsolationLevel) error {
	return ErrTransactionsUnsupported
}

func (c *Conn) Validate(ctx context.Context, depth fluxdbc.ValidationDepth) bool {
	if c.closed.Load() {
		return false
	}
	if depth == fluxdbc.ValidationRemote {
		return c.client.Ping(ctx).Err() == nil
	}
	return true
}

func (c *Conn) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.client.Close()
}

func (c *Conn) Metadata() *fluxdbc.ConnectionMetadata { return c.meta }

// splitCommand splits a command line into arguments, honoring single and
// double quotes the way redis-cli does.
func splitCommand(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inArg := false
	quote := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inArg = true
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteByte(ch)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("redis: unbalanced quote in command")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

// memCursor plays back rows already materialized from a server reply.
type memCursor struct {
	cols []fluxdbc.ColumnMetadata
	rows [][]any
	pos  int
	vals []any
}

func (c *memCursor) Columns() []fluxdbc.ColumnMetadata { return c.cols }

func (c *memCursor) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.pos >= len(c.rows) {
		return false, nil
	}
	c.vals = c.rows[c.pos]
	c.pos++
	return true, nil
}

func (c *memCursor) Values() []any { return c.vals }

func (c *memCursor) Close(ctx context.Context) error { return nil }
