package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/facerec"
)

const (
	fieldEncodings     = "faceEncodings"
	fieldEmployeeIDRef = "employee_id_ref"
)

// employeeDocument mirrors the stored document. Encodings are decoded as
// float64 because documents written by other tools hold full-precision doubles.
type employeeDocument struct {
	ID            string      `bson:"_id"`
	EmployeeIDRef string      `bson:"employee_id_ref,omitempty"`
	FaceEncodings [][]float64 `bson:"faceEncodings"`
}

// EmployeeRepository is a database.EmployeeStore backed by one MongoDB collection.
type EmployeeRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewEmployeeRepository(client *mongo.Client, coll *mongo.Collection) *EmployeeRepository {
	return &EmployeeRepository{client: client, coll: coll}
}

// AppendEncoding pushes enc onto the employee's faceEncodings in a single
// upserting update, then reads back the array size.
func (r *EmployeeRepository) AppendEncoding(ctx context.Context, employeeID string, enc facerec.Encoding) (*database.UpsertResult, error) {
	if employeeID == "" {
		return nil, database.ErrEmptyEmployeeID
	}

	filter := bson.D{{Key: "_id", Value: employeeID}}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: fieldEncodings, Value: toFloat64(enc)}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: fieldEmployeeIDRef, Value: employeeID}}},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("upsert employee %s: %w", employeeID, err)
	}

	result := &database.UpsertResult{
		Matched:  res.MatchedCount,
		Modified: res.ModifiedCount,
	}
	if res.UpsertedID != nil {
		id := fmt.Sprint(res.UpsertedID)
		result.UpsertedID = &id
	}

	count, err := r.encodingCount(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	result.EncodingCount = count
	return result, nil
}

func (r *EmployeeRepository) encodingCount(ctx context.Context, employeeID string) (int, error) {
	var out struct {
		Count int `bson:"count"`
	}
	projection := bson.D{
		{Key: "_id", Value: 0},
		{Key: "count", Value: bson.D{{Key: "$size", Value: bson.D{
			{Key: "$ifNull", Value: bson.A{"$" + fieldEncodings, bson.A{}}},
		}}}},
	}

	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: employeeID}},
		options.FindOne().SetProjection(projection)).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("count encodings for %s: %w", employeeID, err)
	}
	return out.Count, nil
}

// GetEmployee returns the employee's record, or nil if none exists.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, employeeID string) (*database.EmployeeRecord, error) {
	var doc employeeDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: employeeID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee %s: %w", employeeID, err)
	}

	rec := &database.EmployeeRecord{
		ID:            doc.ID,
		EmployeeIDRef: doc.EmployeeIDRef,
		Encodings:     make([]facerec.Encoding, 0, len(doc.FaceEncodings)),
	}
	for _, values := range doc.FaceEncodings {
		rec.Encodings = append(rec.Encodings, toEncoding(values))
	}
	return rec, nil
}

func (r *EmployeeRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *EmployeeRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func toFloat64(enc facerec.Encoding) []float64 {
	out := make([]float64, len(enc))
	for i, v := range enc {
		out[i] = float64(v)
	}
	return out
}

func toEncoding(values []float64) facerec.Encoding {
	out := make(facerec.Encoding, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
