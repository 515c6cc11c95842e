// Package mongo is the MongoDB driver. Importing it registers the driver
// under "mongo", also claiming "mongodb":
//
//	import _ "fluxdbc/driver/mongo"
//
// MongoDB has no SQL surface, so Execute takes shell-style commands:
//
//	db.users.find({"age": {"$gt": 18}})
//	orders.insertOne({"id": 1})
//	orders.deleteMany({"done": true})
//	orders.countDocuments({})
//
// find and countDocuments produce row results; find rows carry a single
// "document" column holding the document as a JSON string.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fluxdbc"
)

const driverName = "mongo"

// ErrTransactionsUnsupported is returned by the transaction methods; this
// driver does not bridge sessions onto the command surface.
var ErrTransactionsUnsupported = errors.New("mongo: transactions not supported")

func init() {
	fluxdbc.Register(&Driver{})
}

// Driver matches option bags whose driver option is "mongo" or "mongodb".
type Driver struct{}

func (*Driver) Name() string { return driverName }

func (*Driver) Supports(opts *fluxdbc.Options) bool {
	name, ok := fluxdbc.Value(opts, fluxdbc.DriverName)
	return ok && (name == "mongo" || name == "mongodb")
}

func (*Driver) NewFactory(opts *fluxdbc.Options) (fluxdbc.ConnectionFactory, error) {
	clientOpts := options.Client().ApplyURI(clientURI(opts))
	if t, ok := fluxdbc.Value(opts, fluxdbc.ConnectTimeout); ok {
		clientOpts.SetConnectTimeout(t)
	}
	if err := clientOpts.Validate(); err != nil {
		return nil, fmt.Errorf("mongo: invalid options: %w", err)
	}
	db, _ := fluxdbc.Value(opts, fluxdbc.Database)
	return &Factory{
		clientOpts: clientOpts,
		defaultDB:  db,
		meta:       fluxdbc.NewFactoryMetadata(driverName),
	}, nil
}

// clientURI renders the option bag as a mongodb:// URI. Options the driver
// does not understand are ignored.
func clientURI(opts *fluxdbc.Options) string {
	u := url.URL{Scheme: "mongodb"}

	host := "localhost"
	if h, ok := fluxdbc.Value(opts, fluxdbc.Host); ok {
		host = h
	}
	u.Host = host
	if p, ok := fluxdbc.Value(opts, fluxdbc.Port); ok {
		u.Host = host + ":" + strconv.Itoa(p)
	}
	if user, ok := fluxdbc.Value(opts, fluxdbc.User); ok {
		if pass, ok := fluxdbc.Value(opts, fluxdbc.Password); ok {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	if db, ok := fluxdbc.Value(opts, fluxdbc.Database); ok {
		u.Path = "/" + db
	}
	q := url.Values{}
	if ssl, ok := fluxdbc.Value(opts, fluxdbc.SSL); ok {
		q.Set("tls", strconv.FormatBool(ssl))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Factory mints MongoDB connections. Each connection owns its own client.
type Factory struct {
	clientOpts *options.ClientOptions
	defaultDB  string
	meta       *fluxdbc.FactoryMetadata
}

func (f *Factory) Metadata() *fluxdbc.FactoryMetadata { return f.meta }

func (f *Factory) Create() *fluxdbc.ConnectionRequest {
	return fluxdbc.NewConnectionRequest(f.dial)
}

func (f *Factory) dial(ctx context.Context) (fluxdbc.Connection, error) {
	client, err := mongo.Connect(ctx, f.clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	// Connect is lazy; ping so the connection is real before it is handed
	// out, and tear the client down if the server is unreachable.
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	var info struct {
		Version string `bson:"version"`
	}
	_ = client.Database("admin").
		RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).
		Decode(&info)

	return &Conn{
		client:    client,
		defaultDB: f.defaultDB,
		meta:      fluxdbc.NewConnectionMetadata("MongoDB", info.Version),
	}, nil
}

// Conn is one MongoDB session.
type Conn struct {
	client    *mongo.Client
	defaultDB string
	meta      *fluxdbc.ConnectionMetadata
	closed    atomic.Bool
}

func (c *Conn) Execute(ctx context.Context, query string) (*fluxdbc.Result, error) {
	if c.closed.Load() {
		return nil, fluxdbc.ErrConnectionClosed
	}
	cmd, err := parseCommand(query)
	if err != nil {
		return nil, err
	}
	dbName := cmd.DB
	if dbName == "" {
		dbName = c.defaultDB
	}
	if dbName == "" {
		return nil, errors.New("mongo: no database selected; use db.collection.operation or set the database option")
	}

	var arg bson.M
	if err := json.Unmarshal([]byte(cmd.Arg), &arg); err != nil {
		return nil, fmt.Errorf("mongo: invalid argument JSON: %w", err)
	}
	coll := c.client.Database(dbName).Collection(cmd.Collection)

	switch cmd.Op {
	case "find":
		cur, err := coll.Find(ctx, arg)
		if err != nil {
			return nil, fmt.Errorf("mongo: find: %w", err)
		}
		return fluxdbc.NewQueryResult(&docCursor{cur: cur}), nil

	case "countDocuments":
		n, err := coll.CountDocuments(ctx, arg)
		if err != nil {
			return nil, fmt.Errorf("mongo: countDocuments: %w", err)
		}
		return fluxdbc.NewQueryResult(&memCursor{
			cols: []fluxdbc.ColumnMetadata{{Name: "count", DatabaseTypeName: "LONG"}},
			rows: [][]any{{n}},
		}), nil

	case "insertOne":
		if _, err := coll.InsertOne(ctx, arg); err != nil {
			return nil, fmt.Errorf("mongo: insertOne: %w", err)
		}
		return fluxdbc.NewUpdateResult(1), nil

	case "deleteMany":
		res, err := coll.DeleteMany(ctx, arg)
		if err != nil {
			return nil, fmt.Errorf("mongo: deleteMany: %w", err)
		}
		return fluxdbc.NewUpdateResult(res.DeletedCount), nil

	default:
		return nil, fmt.Errorf("mongo: unsupported operation %q", cmd.Op)
	}
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
		return c.client.Ping(ctx, nil) == nil
	}
	return true
}

func (c *Conn) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("mongo: disconnect: %w", err)
	}
	return nil
}

func (c *Conn) Metadata() *fluxdbc.ConnectionMetadata { return c.meta }
