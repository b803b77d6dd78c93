package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nimbusdrive/models"
)

type MongoFileRepository struct {
	collection *mongo.Collection
}

func NewMongoFileRepository(db *mongo.Database) *MongoFileRepository {
	return &MongoFileRepository{collection: db.Collection("files")}
}

// EnsureIndexes creates the lookup indexes and the unique object_key
// constraint for the files collection.
func (r *MongoFileRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "object_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "folder_id", Value: 1}, {Key: "is_deleted", Value: 1}}},
		{Keys: bson.D{{Key: "is_deleted", Value: 1}, {Key: "deleted_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create file indexes: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) Insert(ctx context.Context, file *models.File) error {
	_, err := r.collection.InsertOne(ctx, file)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) FindOwned(ctx context.Context, ownerID, fileID primitive.ObjectID) (*models.File, error) {
	var file models.File
	err := r.collection.FindOne(ctx, bson.M{
		"_id":        fileID,
		"owner_id":   ownerID,
		"is_deleted": false,
	}).Decode(&file)

	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &file, nil
}

func (r *MongoFileRepository) FindOwnedAny(ctx context.Context, ownerID, fileID primitive.ObjectID) (*models.File, error) {
	var file models.File
	err := r.collection.FindOne(ctx, bson.M{
		"_id":      fileID,
		"owner_id": ownerID,
	}).Decode(&file)

	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &file, nil
}

func (r *MongoFileRepository) FindByID(ctx context.Context, fileID primitive.ObjectID) (*models.File, error) {
	var file models.File
	err := r.collection.FindOne(ctx, bson.M{
		"_id":        fileID,
		"is_deleted": false,
	}).Decode(&file)

	if err == mongo.ErrNoDocuments {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &file, nil
}

func (r *MongoFileRepository) List(ctx context.Context, ownerID primitive.ObjectID, filter FileFilter) ([]models.File, int64, int64, error) {
	query := bson.M{
		"owner_id":   ownerID,
		"is_deleted": false,
	}
	if filter.FolderID != nil {
		query["folder_id"] = *filter.FolderID
	} else if filter.RootOnly {
		query["folder_id"] = nil
	}
	if filter.MimePattern != "" {
		query["mime_type"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.MimePattern)}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to count files: %w", err)
	}

	totalSize, err := r.sumSizes(ctx, query)
	if err != nil {
		return nil, 0, 0, err
	}

	sortField := map[string]string{
		SortByUploadedAt: "uploaded_at",
		SortByFileName:   "file_name",
		SortByFileSize:   "file_size",
	}[filter.SortBy]
	if sortField == "" {
		sortField = "uploaded_at"
	}
	order := -1
	if filter.SortOrder == SortAsc {
		order = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: order}}).
		SetSkip(filter.Offset).
		SetLimit(filter.Limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to list files: %w", err)
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err = cursor.All(ctx, &files); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode files: %w", err)
	}

	return files, total, totalSize, nil
}

func (r *MongoFileRepository) sumSizes(ctx context.Context, query bson.M) (int64, error) {
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: query}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total_size": bson.M{"$sum": "$file_size"}}}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		TotalSize int64 `bson:"total_size"`
	}
	if err = cursor.All(ctx, &result); err != nil {
		return 0, fmt.Errorf("failed to decode size aggregate: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].TotalSize, nil
}

func (r *MongoFileRepository) ListByFolder(ctx context.Context, ownerID primitive.ObjectID, folderID *primitive.ObjectID, limit int) ([]models.File, error) {
	query := bson.M{
		"owner_id":   ownerID,
		"is_deleted": false,
	}
	if folderID != nil {
		query["folder_id"] = *folderID
	} else {
		query["folder_id"] = nil
	}

	opts := options.Find().SetSort(bson.M{"file_name": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list files by folder: %w", err)
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err = cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %w", err)
	}
	return files, nil
}

func (r *MongoFileRepository) SetFolder(ctx context.Context, fileID primitive.ObjectID, folderID *primitive.ObjectID, now time.Time) error {
	set := bson.M{"last_modified": now}
	if folderID != nil {
		set["folder_id"] = *folderID
	} else {
		set["folder_id"] = nil
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": fileID, "is_deleted": false},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("file %s not found", fileID.Hex())
	}
	return nil
}

func (r *MongoFileRepository) ReplaceTags(ctx context.Context, fileID primitive.ObjectID, tags []string, now time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": fileID, "is_deleted": false},
		bson.M{"$set": bson.M{"tags": tags, "last_modified": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to update tags: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) ReplaceMetadata(ctx context.Context, fileID primitive.ObjectID, metadata map[string]string, now time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": fileID, "is_deleted": false},
		bson.M{"$set": bson.M{"metadata": metadata, "last_modified": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) AddSharedWith(ctx context.Context, fileID, principalID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": fileID, "is_deleted": false},
		bson.M{"$addToSet": bson.M{"shared_with": principalID}},
	)
	if err != nil {
		return fmt.Errorf("failed to add shared principal: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) RemoveSharedWith(ctx context.Context, fileID, principalID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": fileID},
		bson.M{"$pull": bson.M{"shared_with": principalID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove shared principal: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) MarkDeleted(ctx context.Context, fileID primitive.ObjectID, now time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": fileID, "is_deleted": false},
		bson.M{"$set": bson.M{"is_deleted": true, "deleted_at": now, "last_modified": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark file deleted: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) Delete(ctx context.Context, fileID primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": fileID})
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

func (r *MongoFileRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.File, error) {
	opts := options.Find().SetSort(bson.M{"deleted_at": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{
		"is_deleted": true,
		"deleted_at": bson.M{"$lt": cutoff},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted files: %w", err)
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err = cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode deleted files: %w", err)
	}
	return files, nil
}
