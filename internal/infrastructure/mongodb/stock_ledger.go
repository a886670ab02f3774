package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const movementsCollection = "stock_movements"

// ErrProductMissing is returned when a movement targets an unknown product
var ErrProductMissing = errors.New("ledger movement targets an unknown product")

// StockLedger appends stock movements and applies them to the product stock in one transaction.
// The idempotency key is unique, so a replayed adjustment returns the movement already booked.
type StockLedger struct {
	movements *mongo.Collection
	products  *mongo.Collection
	db        *mongo.Database
	observer  *pkgmongo.Observer
}

// NewStockLedger creates a new StockLedger
func NewStockLedger(db *mongo.Database, observer *pkgmongo.Observer) *StockLedger {
	return &StockLedger{
		movements: db.Collection(movementsCollection),
		products:  db.Collection(productsCollection),
		db:        db,
		observer:  observer,
	}
}

// EnsureIndexes creates the ledger indexes
func (l *StockLedger) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "idempotencyKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"idempotencyKey": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "reference", Value: 1}}},
	}
	if _, err := l.movements.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	return nil
}

// AdjustStock books adj and returns its movement
func (l *StockLedger) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (*domain.StockMovement, error) {
	if err := adj.Validate(); err != nil {
		return nil, err
	}

	if existing, err := l.findByKey(ctx, adj.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	movement := domain.NewStockMovement(uuid.NewString(), adj)
	movement.CreatedAt = pkgmongo.Now()

	err := l.observer.Do(ctx, movementsCollection, "adjust", func(ctx context.Context) error {
		return pkgmongo.WithTransaction(ctx, l.db, func(sessCtx mongo.SessionContext) error {
			if _, err := l.movements.InsertOne(sessCtx, movement); err != nil {
				return err
			}
			update := bson.M{
				"$inc": bson.M{"stock": adj.Direction.Signed(adj.Quantity)},
				"$set": bson.M{"updatedAt": movement.CreatedAt},
			}
			result, err := l.products.UpdateByID(sessCtx, adj.ProductID, update)
			if err != nil {
				return err
			}
			if result.MatchedCount == 0 {
				return fmt.Errorf("%w: %s", ErrProductMissing, adj.ProductID)
			}
			return nil
		})
	})
	if err == nil {
		return movement, nil
	}

	// a concurrent writer booked the same key first
	if mongo.IsDuplicateKeyError(err) && adj.IdempotencyKey != "" {
		if existing, findErr := l.findByKey(ctx, adj.IdempotencyKey); findErr == nil && existing != nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("failed to adjust stock: %w", err)
}

// MovementsFor returns the ledger entries of a product in booking order
func (l *StockLedger) MovementsFor(ctx context.Context, productID string) ([]*domain.StockMovement, error) {
	var movements []*domain.StockMovement
	err := l.observer.Do(ctx, movementsCollection, "findByProduct", func(ctx context.Context) error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
		cursor, err := l.movements.Find(ctx, bson.M{"productId": productID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &movements)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find movements: %w", err)
	}
	return movements, nil
}

func (l *StockLedger) findByKey(ctx context.Context, key string) (*domain.StockMovement, error) {
	if key == "" {
		return nil, nil
	}
	var movement domain.StockMovement
	err := l.observer.Do(ctx, movementsCollection, "findByKey", func(ctx context.Context) error {
		return l.movements.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&movement)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find movement: %w", err)
	}
	return &movement, nil
}

// IsTransient reports whether err is a network, timeout or retryable server failure
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel("TransientTransactionError") || labeled.HasErrorLabel("RetryableWriteError")
	}
	return false
}
