package legacy

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ticketops/config"
)

// Source yields the legacy documents, parents before children.
type Source interface {
	Clients(ctx context.Context) ([]Client, error)
	Sites(ctx context.Context) ([]Site, error)
	Users(ctx context.Context) ([]User, error)
	Assets(ctx context.Context) ([]Asset, error)
	Stock(ctx context.Context) ([]StockItem, error)
	Tickets(ctx context.Context) ([]Ticket, error)
}

// MongoSource reads the legacy MongoDB database.
type MongoSource struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, cfg config.LegacyConfig) (*MongoSource, error) {
	if cfg.MongoURI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("legacy mongo uri and database are required")
	}
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect legacy mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping legacy mongo: %w", err)
	}
	return &MongoSource{client: client, db: client.Database(cfg.Database)}, nil
}

func (m *MongoSource) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func findAll[T any](ctx context.Context, coll *mongo.Collection) ([]T, error) {
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

func (m *MongoSource) Clients(ctx context.Context) ([]Client, error) {
	return findAll[Client](ctx, m.db.Collection(CollClients))
}

func (m *MongoSource) Sites(ctx context.Context) ([]Site, error) {
	return findAll[Site](ctx, m.db.Collection(CollSites))
}

func (m *MongoSource) Users(ctx context.Context) ([]User, error) {
	return findAll[User](ctx, m.db.Collection(CollUsers))
}

func (m *MongoSource) Assets(ctx context.Context) ([]Asset, error) {
	return findAll[Asset](ctx, m.db.Collection(CollAssets))
}

func (m *MongoSource) Stock(ctx context.Context) ([]StockItem, error) {
	return findAll[StockItem](ctx, m.db.Collection(CollStock))
}

func (m *MongoSource) Tickets(ctx context.Context) ([]Ticket, error) {
	return findAll[Ticket](ctx, m.db.Collection(CollTickets))
}
