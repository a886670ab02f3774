// Package mongodb connects to MongoDB and instruments repository calls.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const healthCheckTimeout = 2 * time.Second

// Config holds MongoDB connection configuration
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
}

// Client owns the driver connection and the service database
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewClient connects and pings the primary within ConnectTimeout.
// Writes use majority acknowledgement and are retried once by the driver,
// so a ledger movement is never reported stored before a majority holds it.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	opts := options.Client().
		ApplyURI(config.URI).
		SetConnectTimeout(config.ConnectTimeout).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", config.Database, err)
	}

	return &Client{client: client, database: client.Database(config.Database)}, nil
}

// Database returns the service database
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// HealthCheck pings the primary, bounded so readiness probes cannot hang
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.client.Ping(ctx, readpref.Primary())
}

// WithTransaction runs fn in a snapshot transaction on db's client.
// Repositories use it to persist an aggregate together with its outbox events.
func WithTransaction(ctx context.Context, db *mongo.Database, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txnOpts)
	return err
}

// Now returns the current UTC time at BSON date precision
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
