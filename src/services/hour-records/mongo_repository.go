package hourrecords

import (
	"context"
	"errors"
	"fmt"

	"Backend-Volunteer-Hours/src/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores records in the HourRecords collection. Naive
// "2006-01-02 15:04:05" strings sort chronologically, so range filters
// and sorts work on the raw fields.
type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// open matches records without an end time.
var open = bson.A{
	bson.M{"endTime": nil},
	bson.M{"endTime": ""},
}

func (r *MongoRepository) Insert(ctx context.Context, rec *models.HourRecord) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert hour record: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.HourRecord, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *MongoRepository) FindOpen(ctx context.Context, userID string) (*models.HourRecord, error) {
	return r.findOne(ctx,
		bson.M{"userId": userID, "$or": open},
		options.FindOne().SetSort(bson.D{{Key: "startTime", Value: -1}}))
}

func (r *MongoRepository) Latest(ctx context.Context, userID string) (*models.HourRecord, error) {
	return r.findOne(ctx,
		bson.M{"userId": userID},
		options.FindOne().SetSort(bson.D{{Key: "startTime", Value: -1}}))
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.HourRecord, error) {
	var rec models.HourRecord
	var err error
	if opts != nil {
		err = r.coll.FindOne(ctx, filter, opts).Decode(&rec)
	} else {
		err = r.coll.FindOne(ctx, filter).Decode(&rec)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find hour record: %w", err)
	}
	return &rec, nil
}

func (r *MongoRepository) List(ctx context.Context, f models.HourRecordFilters, page models.PaginationParams) ([]models.HourRecord, int64, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.OpenOnly {
		filter["$or"] = open
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count hour records: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "startTime", Value: -1}}).
		SetSkip(page.GetSkip())
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list hour records: %w", err)
	}
	defer cursor.Close(ctx)

	rows := []models.HourRecord{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("failed to decode hour records: %w", err)
	}
	return rows, total, nil
}

func (r *MongoRepository) Close(ctx context.Context, id string, c Closure) (bool, error) {
	set := bson.M{
		"endTime":          c.EndTime,
		"operateUserId":    c.OperateUserID,
		"operateLegalName": c.OperateLegalName,
		"approvalStatus":   c.ApprovalStatus,
		"autoApproved":     c.AutoApproved,
		"updateTime":       c.UpdateTime,
	}
	if c.Remark != "" {
		set["remark"] = c.Remark
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "$or": open},
		bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to close hour record: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoRepository) FindOpenStartedBefore(ctx context.Context, cutoff string) ([]models.HourRecord, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"startTime": bson.M{"$lt": cutoff}, "$or": open},
		options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find open hour records: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.HourRecord
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode hour records: %w", err)
	}
	return rows, nil
}
