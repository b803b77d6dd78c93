package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nimbusdrive/models"
)

type MongoShareRepository struct {
	collection *mongo.Collection
}

func NewMongoShareRepository(db *mongo.Database) *MongoShareRepository {
	return &MongoShareRepository{collection: db.Collection("shares")}
}

// EnsureIndexes creates the unique token constraint and owner lookup index.
func (r *MongoShareRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "is_revoked", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create share indexes: %w", err)
	}
	return nil
}

func (r *MongoShareRepository) Insert(ctx context.Context, share *models.Share) error {
	_, err := r.collection.InsertOne(ctx, share)
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

func (r *MongoShareRepository) FindByToken(ctx context.Context, token string) (*models.Share, error) {
	var share models.Share
	err := r.collection.FindOne(ctx, bson.M{
		"token":      token,
		"is_revoked": false,
	}).Decode(&share)

	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &share, nil
}

func (r *MongoShareRepository) FindOwned(ctx context.Context, ownerID, shareID primitive.ObjectID) (*models.Share, error) {
	var share models.Share
	err := r.collection.FindOne(ctx, bson.M{
		"_id":      shareID,
		"owner_id": ownerID,
	}).Decode(&share)

	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &share, nil
}

func (r *MongoShareRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Share, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.M{"created_at": -1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer cursor.Close(ctx)

	var shares []models.Share
	if err = cursor.All(ctx, &shares); err != nil {
		return nil, fmt.Errorf("failed to decode shares: %w", err)
	}
	return shares, nil
}

func (r *MongoShareRepository) UpdateGrant(ctx context.Context, share *models.Share) error {
	// The struct is the source of truth for every mutable field, so a
	// cleared expiry or allowlist is persisted too.
	update := bson.M{"$set": bson.M{
		"permissions":    share.Permissions,
		"allowed_emails": share.AllowedEmails,
		"updated_at":     share.UpdatedAt,
	}}
	if share.ExpiresAt != nil {
		update["$set"].(bson.M)["expires_at"] = share.ExpiresAt
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": share.ID, "owner_id": share.OwnerID, "is_revoked": false},
		update,
	)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("share %s not found", share.ID.Hex())
	}
	return nil
}

func (r *MongoShareRepository) Revoke(ctx context.Context, ownerID, shareID primitive.ObjectID, now time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": shareID, "owner_id": ownerID, "is_revoked": false},
		bson.M{"$set": bson.M{"is_revoked": true, "revoked_at": now, "updated_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke share: %w", err)
	}
	return result.ModifiedCount > 0, nil
}
