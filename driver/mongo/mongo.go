// driver/mongo/mongo.go

// Package mongo wires MongoDB into the hook dispatch engine. It mirrors
// the SQL store's surface over collections: every bulk mutation
// dispatches the matching lifecycle events, and after hooks defer to
// the session transaction commit.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	bulkhooks "github.com/chmenegatti/bulkhooks"
	"github.com/chmenegatti/bulkhooks/metadata"
	"github.com/chmenegatti/bulkhooks/store"
)

// Config holds MongoDB connection parameters.
type Config struct {
	URI            string        `mapstructure:"uri" json:"uri" yaml:"uri"`
	Database       string        `mapstructure:"database" json:"database" yaml:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout"`
}

// Store is a MongoDB-backed document store wired to a hook dispatcher.
type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	dispatcher *bulkhooks.Dispatcher
	logger     *slog.Logger
}

// Open connects to MongoDB, verifies the connection with a ping against
// the primary, and wraps the database in a store. A nil dispatcher gets
// a fresh one wired to the default registry and this store's
// transaction manager.
func Open(ctx context.Context, cfg Config, dispatcher *bulkhooks.Dispatcher) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: URI is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping after connect: %w", err)
	}

	if dispatcher == nil {
		dispatcher = bulkhooks.NewDispatcher(nil, nil, TxManager{})
	}
	return &Store{
		client:     client,
		db:         client.Database(cfg.Database),
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Dispatcher returns the hook dispatcher this store notifies.
func (s *Store) Dispatcher() *bulkhooks.Dispatcher { return s.dispatcher }

// SetLogger replaces the structured logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Collection binds an entity type to its MongoDB collection, named after
// the entity's table name.
func (s *Store) Collection(model any) (*Collection, error) {
	meta, err := metadata.Parse(model)
	if err != nil {
		return nil, fmt.Errorf("mongo: collection: %w", err)
	}
	if meta.PrimaryKey == nil {
		return nil, fmt.Errorf("mongo: collection %s: %w", meta.Name, store.ErrNoPrimaryKey)
	}
	return &Collection{
		store:  s,
		coll:   s.db.Collection(meta.TableName),
		meta:   meta,
		pkName: bsonFieldName(meta.Type.Field(meta.PrimaryKey.Index)),
	}, nil
}

// Collection dispatches lifecycle hooks around bulk document mutations.
type Collection struct {
	store  *Store
	coll   *mongo.Collection
	meta   *metadata.EntityMetadata
	pkName string
}

// BulkCreate inserts documents with one InsertMany. validate_create and
// before_create run ahead of the write and can veto it; after_create
// follows, deferred to commit inside a session transaction.
func (c *Collection) BulkCreate(ctx context.Context, records []any, opts ...store.Option) error {
	if len(records) == 0 {
		return nil
	}
	o := store.ApplyOptions(opts)
	if !o.BypassHooks {
		if err := c.dispatch(ctx, bulkhooks.ValidateCreate, records, nil, o.Extra); err != nil {
			return err
		}
		if err := c.dispatch(ctx, bulkhooks.BeforeCreate, records, nil, o.Extra); err != nil {
			return err
		}
	}
	if _, err := c.coll.InsertMany(ctx, records); err != nil {
		return fmt.Errorf("mongo: bulk create %s: %w", c.meta.TableName, err)
	}
	if !o.BypassHooks {
		return c.dispatch(ctx, bulkhooks.AfterCreate, records, nil, o.Extra)
	}
	return nil
}

// BulkUpdate replaces documents by primary key. The prior documents are
// fetched first so conditions see real old snapshots.
func (c *Collection) BulkUpdate(ctx context.Context, records []any, opts ...store.Option) error {
	if len(records) == 0 {
		return nil
	}
	o := store.ApplyOptions(opts)

	var oldRecords []any
	if !o.BypassHooks {
		var err error
		oldRecords, err = c.fetchOriginals(ctx, records)
		if err != nil {
			return err
		}
		if err := c.dispatch(ctx, bulkhooks.ValidateUpdate, records, oldRecords, o.Extra); err != nil {
			return err
		}
		if err := c.dispatch(ctx, bulkhooks.BeforeUpdate, records, oldRecords, o.Extra); err != nil {
			return err
		}
	}

	for _, record := range records {
		pk, ok := c.meta.PrimaryKey.ValueOf(record)
		if !ok {
			return fmt.Errorf("mongo: bulk update: cannot read %s.%s", c.meta.Name, c.meta.PrimaryKey.Name)
		}
		filter := bson.M{c.pkName: pk}
		if _, err := c.coll.ReplaceOne(ctx, filter, record); err != nil {
			return fmt.Errorf("mongo: bulk update %s: %w", c.meta.TableName, err)
		}
	}

	if !o.BypassHooks {
		return c.dispatch(ctx, bulkhooks.AfterUpdate, records, oldRecords, o.Extra)
	}
	return nil
}

// BulkDelete removes documents by primary key with one DeleteMany.
func (c *Collection) BulkDelete(ctx context.Context, records []any, opts ...store.Option) error {
	if len(records) == 0 {
		return nil
	}
	o := store.ApplyOptions(opts)
	if !o.BypassHooks {
		if err := c.dispatch(ctx, bulkhooks.ValidateDelete, records, nil, o.Extra); err != nil {
			return err
		}
		if err := c.dispatch(ctx, bulkhooks.BeforeDelete, records, nil, o.Extra); err != nil {
			return err
		}
	}

	keys := make([]any, 0, len(records))
	for _, record := range records {
		pk, ok := c.meta.PrimaryKey.ValueOf(record)
		if !ok {
			return fmt.Errorf("mongo: bulk delete: cannot read %s.%s", c.meta.Name, c.meta.PrimaryKey.Name)
		}
		keys = append(keys, pk)
	}
	if _, err := c.coll.DeleteMany(ctx, bson.M{c.pkName: bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("mongo: bulk delete %s: %w", c.meta.TableName, err)
	}

	if !o.BypassHooks {
		return c.dispatch(ctx, bulkhooks.AfterDelete, records, nil, o.Extra)
	}
	return nil
}

func (c *Collection) dispatch(ctx context.Context, event bulkhooks.Event, records, oldRecords []any, extra map[string]any) error {
	return c.store.dispatcher.Handle(ctx, event, records[0], records, oldRecords, extra)
}

// fetchOriginals loads the stored documents for every record by primary
// key, aligned with the input order; missing documents get a nil slot.
func (c *Collection) fetchOriginals(ctx context.Context, records []any) ([]any, error) {
	keys := make([]any, 0, len(records))
	for _, record := range records {
		pk, ok := c.meta.PrimaryKey.ValueOf(record)
		if !ok || pk == nil || reflect.ValueOf(pk).IsZero() {
			continue
		}
		keys = append(keys, pk)
	}
	originals := make([]any, len(records))
	if len(keys) == 0 {
		return originals, nil
	}

	cur, err := c.coll.Find(ctx, bson.M{c.pkName: bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("mongo: fetch originals for %s: %w", c.meta.TableName, err)
	}
	defer cur.Close(ctx)

	byKey := make(map[any]any)
	for cur.Next(ctx) {
		instance := reflect.New(c.meta.Type)
		if err := cur.Decode(instance.Interface()); err != nil {
			return nil, fmt.Errorf("mongo: fetch originals for %s: %w", c.meta.TableName, err)
		}
		pk, ok := c.meta.PrimaryKey.ValueOf(instance.Interface())
		if !ok {
			continue
		}
		byKey[fmt.Sprint(pk)] = instance.Interface()
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: fetch originals for %s: %w", c.meta.TableName, err)
	}

	for i, record := range records {
		pk, ok := c.meta.PrimaryKey.ValueOf(record)
		if !ok {
			continue
		}
		originals[i] = byKey[fmt.Sprint(pk)]
	}
	return originals, nil
}

// bsonFieldName mirrors the driver's default field mapping: the bson
// struct tag when present, the lowercased Go name otherwise.
func bsonFieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("bson"); ok {
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(field.Name)
}
