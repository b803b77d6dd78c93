package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates the indexes for every collection. Called once at
// startup before the server accepts traffic.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := NewMongoFolderRepository(db).EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := NewMongoFileRepository(db).EnsureIndexes(ctx); err != nil {
		return err
	}
	return NewMongoShareRepository(db).EnsureIndexes(ctx)
}
