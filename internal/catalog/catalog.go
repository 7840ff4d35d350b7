// Package catalog reads the event catalog. Events are owned by the content
// side of the marketplace and live in MongoDB; the core never writes them.
package catalog

import (
	"context"
	"regexp"
	"time"

	"github.com/Niiaks/ticketcore/internal/apperr"
	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/Niiaks/ticketcore/internal/model"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Catalog interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error)
	CountEvents(ctx context.Context) (int, error)
}

const defaultListLimit = 100

type MongoCatalog struct {
	coll *mongo.Collection
}

func NewMongoCatalog(coll *mongo.Collection) *MongoCatalog {
	return &MongoCatalog{coll: coll}
}

// Connect dials MongoDB and returns the client (for Disconnect) and the catalog.
func Connect(ctx context.Context, cfg config.MongoConfig, log *zerolog.Logger) (*mongo.Client, *MongoCatalog, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errors.Wrap(err, "ping mongo")
	}

	log.Info().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("Connected to MongoDB catalog")

	return client, NewMongoCatalog(client.Database(cfg.Database).Collection(cfg.Collection)), nil
}

func (c *MongoCatalog) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := c.coll.FindOne(ctx, bson.M{"event_id": id}, options.FindOne().SetProjection(bson.M{"_id": 0})).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find event")
	}
	return &event, nil
}

func (c *MongoCatalog) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	limit := f.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 0}).
		SetSort(bson.D{{Key: "event_date", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := c.coll.Find(ctx, Filter(f), opts)
	if err != nil {
		return nil, errors.Wrap(err, "find events")
	}
	defer cur.Close(ctx)

	events := []model.Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, errors.Wrap(err, "decode events")
	}
	return events, nil
}

func (c *MongoCatalog) CountEvents(ctx context.Context) (int, error) {
	n, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "count events")
	}
	return int(n), nil
}

// Filter translates the public search parameters into a Mongo query.
func Filter(f model.EventFilter) bson.M {
	q := bson.M{}
	if f.Type != "" {
		q["event_type"] = f.Type
	}
	if f.City != "" {
		q["city"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.City) + "$", "$options": "i"}
	}
	if f.Featured {
		q["featured"] = true
	}
	if f.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		q["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"venue": pattern},
			bson.M{"city": pattern},
		}
	}
	return q
}

// Upcoming drops events dated before now. Dates the catalog cannot parse are kept.
func Upcoming(events []model.Event, now time.Time) []model.Event {
	out := events[:0]
	for _, e := range events {
		if d, err := time.Parse(time.RFC3339, e.Date); err == nil && d.Before(now) {
			continue
		}
		out = append(out, e)
	}
	return out
}
