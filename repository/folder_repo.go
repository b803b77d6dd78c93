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

type MongoFolderRepository struct {
	collection *mongo.Collection
}

func NewMongoFolderRepository(db *mongo.Database) *MongoFolderRepository {
	return &MongoFolderRepository{collection: db.Collection("folders")}
}

// EnsureIndexes creates the lookup indexes for the folders collection.
func (r *MongoFolderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "parent_id", Value: 1}, {Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "is_deleted", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create folder indexes: %w", err)
	}
	return nil
}

func (r *MongoFolderRepository) Insert(ctx context.Context, folder *models.Folder) error {
	_, err := r.collection.InsertOne(ctx, folder)
	if err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}
	return nil
}

func (r *MongoFolderRepository) FindByID(ctx context.Context, ownerID, folderID primitive.ObjectID) (*models.Folder, error) {
	var folder models.Folder
	err := r.collection.FindOne(ctx, bson.M{
		"_id":        folderID,
		"owner_id":   ownerID,
		"is_deleted": false,
	}).Decode(&folder)

	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &folder, nil
}

func (r *MongoFolderRepository) FindByName(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"name":       name,
		"is_deleted": false,
	}
	if parentID != nil {
		filter["parent_id"] = *parentID
	} else {
		filter["parent_id"] = nil
	}

	var folder models.Folder
	err := r.collection.FindOne(ctx, filter).Decode(&folder)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &folder, nil
}

func (r *MongoFolderRepository) ListChildren(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"is_deleted": false,
	}
	if parentID != nil {
		filter["parent_id"] = *parentID
	} else {
		filter["parent_id"] = nil
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer cursor.Close(ctx)

	var folders []models.Folder
	if err = cursor.All(ctx, &folders); err != nil {
		return nil, fmt.Errorf("failed to decode folders: %w", err)
	}
	return folders, nil
}

func (r *MongoFolderRepository) UpdateName(ctx context.Context, folderID primitive.ObjectID, name string, now time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": folderID, "is_deleted": false},
		bson.M{"$set": bson.M{"name": name, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("folder %s not found", folderID.Hex())
	}
	return nil
}

func (r *MongoFolderRepository) MarkDeleted(ctx context.Context, folderIDs []primitive.ObjectID, now time.Time) error {
	if len(folderIDs) == 0 {
		return nil
	}
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": folderIDs}, "is_deleted": false},
		bson.M{"$set": bson.M{"is_deleted": true, "deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark folders deleted: %w", err)
	}
	return nil
}
