package mongo

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/couchcryptid/aq-export-service/internal/config"
	"github.com/couchcryptid/aq-export-service/internal/domain"
)

// Connect opens a client for the configured deployment and verifies it answers.
// The client is meant to live for the whole process.
func Connect(ctx context.Context, cfg *config.Config) (*mongodriver.Client, error) {
	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Source streams measurements from a MongoDB collection.
// It implements pipeline.RecordSource.
type Source struct {
	coll      *mongodriver.Collection
	batchSize int32
	logger    *slog.Logger
}

// NewSource creates a Source over the configured database and collection.
func NewSource(client *mongodriver.Client, cfg *config.Config, logger *slog.Logger) *Source {
	return &Source{
		coll:      client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection),
		batchSize: int32(cfg.MongoBatchSize),
		logger:    logger,
	}
}

// Stream runs one find over the window and decodes documents as they are
// pulled. The server-side cursor never times out, so a slow consumer only
// slows the reads down.
func (s *Source) Stream(ctx context.Context, window domain.DayWindow) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		cur, err := s.coll.Find(ctx, windowFilter(window), findOptions(s.batchSize))
		if err != nil {
			yield(domain.RawRecord{}, fmt.Errorf("find measurements: %w", err))
			return
		}
		defer func() {
			if err := cur.Close(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("close measurements cursor", "day", window.Name(), "error", err)
			}
		}()

		for cur.Next(ctx) {
			var rec domain.RawRecord
			if err := cur.Decode(&rec); err != nil {
				yield(domain.RawRecord{}, fmt.Errorf("decode measurement: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(domain.RawRecord{}, fmt.Errorf("iterate measurements: %w", err))
		}
	}
}

func windowFilter(w domain.DayWindow) bson.M {
	return bson.M{
		"date.utc": bson.M{
			"$gte": w.From,
			"$lte": w.To,
		},
	}
}

func findOptions(batchSize int32) *options.FindOptions {
	opts := options.Find().SetNoCursorTimeout(true)
	if batchSize > 0 {
		opts.SetBatchSize(batchSize)
	}
	return opts
}
