package db

import (
	"context"

	"github.com/pratik860s/Autopart-Backend/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// InsertOne inserts a document whose model embeds models.Base, generating a
// fresh SixID first. On a duplicate _id collision (vanishingly rare but
// possible with 6-byte ids) it regenerates the id and retries. A collision
// on any other unique index cannot be fixed by a new id, so it fails
// immediately for the caller to classify.
func InsertOne(ctx context.Context, coll *mongo.Collection, doc models.IBase) error {
	return WithRetries(func() error {
		doc.GenID()
		_, err := coll.InsertOne(ctx, doc)
		return err
	}, DefaultMaxRetries, func(err error) bool {
		return IsDuplicateKeyOnIndex(err, "_id_")
	})
}
