package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const productsCollection = "products"

// ProductCatalog stores products per site. Stock is only changed through StockLedger.
type ProductCatalog struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

// NewProductCatalog creates a new ProductCatalog
func NewProductCatalog(db *mongo.Database, observer *pkgmongo.Observer) *ProductCatalog {
	return &ProductCatalog{
		collection: db.Collection(productsCollection),
		observer:   observer,
	}
}

// EnsureIndexes creates the product indexes
func (c *ProductCatalog) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "siteId", Value: 1}, {Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := c.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	return nil
}

// FindByID returns the product or nil
func (c *ProductCatalog) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	return c.findOne(ctx, "find", bson.M{"_id": productID})
}

// FindBySKUAtSite returns the product carrying sku at siteID or nil
func (c *ProductCatalog) FindBySKUAtSite(ctx context.Context, sku, siteID string) (*domain.Product, error) {
	return c.findOne(ctx, "findBySku", bson.M{"siteId": siteID, "sku": sku})
}

func (c *ProductCatalog) findOne(ctx context.Context, operation string, filter bson.M) (*domain.Product, error) {
	var product domain.Product
	err := c.observer.Do(ctx, productsCollection, operation, func(ctx context.Context) error {
		return c.collection.FindOne(ctx, filter).Decode(&product)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &product, nil
}

// CreateProduct inserts a product
func (c *ProductCatalog) CreateProduct(ctx context.Context, product *domain.Product) error {
	return c.observer.Do(ctx, productsCollection, "insert", func(ctx context.Context) error {
		if _, err := c.collection.InsertOne(ctx, product); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("product %s already exists at site %s: %w", product.SKU, product.SiteID, err)
			}
			return fmt.Errorf("failed to create product: %w", err)
		}
		return nil
	})
}

// ArchiveProduct marks the product discontinued with zero stock
func (c *ProductCatalog) ArchiveProduct(ctx context.Context, productID string) error {
	return c.observer.Do(ctx, productsCollection, "archive", func(ctx context.Context) error {
		update := bson.M{"$set": bson.M{
			"status":    domain.ProductArchived,
			"stock":     0,
			"updatedAt": pkgmongo.Now(),
		}}
		result, err := c.collection.UpdateByID(ctx, productID, update)
		if err != nil {
			return fmt.Errorf("failed to archive product: %w", err)
		}
		if result.MatchedCount == 0 {
			return fmt.Errorf("product not found: %s", productID)
		}
		return nil
	})
}
