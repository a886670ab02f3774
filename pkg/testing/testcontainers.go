// Package testing starts disposable infrastructure for integration tests.
package testing

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const mongoImage = "mongo:6"

// MongoEnv is a single-node replica set, so multi-document transactions work,
// plus a service client connected to it
type MongoEnv struct {
	container *mongodb.MongoDBContainer
	Client    *pkgmongo.Client
}

// StartMongo runs the container and connects a client to database
func StartMongo(ctx context.Context, database string) (*MongoEnv, error) {
	container, err := mongodb.Run(ctx, mongoImage, mongodb.WithReplicaSet("rs0"))
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", mongoImage, err)
	}
	env := &MongoEnv{container: container}

	uri, err := directURI(ctx, container)
	if err != nil {
		_ = env.Terminate(ctx)
		return nil, err
	}

	env.Client, err = pkgmongo.NewClient(ctx, &pkgmongo.Config{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
	})
	if err != nil {
		_ = env.Terminate(ctx)
		return nil, err
	}
	return env, nil
}

// directURI points the driver straight at the container; the replica set
// advertises a hostname only reachable from inside the docker network
func directURI(ctx context.Context, container *mongodb.MongoDBContainer) (string, error) {
	raw, err := container.ConnectionString(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve mongodb uri: %w", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mongodb uri %q: %w", raw, err)
	}
	q := u.Query()
	q.Set("directConnection", "true")
	u.RawQuery = q.Encode()
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// Terminate disconnects the client and removes the container
func (e *MongoEnv) Terminate(ctx context.Context) error {
	if e.Client != nil {
		_ = e.Client.Close(ctx)
	}
	return e.container.Terminate(ctx)
}
