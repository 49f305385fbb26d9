package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cehpoint/project-portal/project-portal-backend/pkg/workflows"
)

var ErrProjectNotFound = errors.New("Project not found")

const defaultRecentLimit = 5

// Repository is the Projects collection
type Repository interface {
	FindAll(ctx context.Context) ([]*Project, error)
	FindByID(ctx context.Context, id string) (*Project, error)
	FindByClientEmail(ctx context.Context, email string) ([]*Project, error)
	FindByStatus(ctx context.Context, statuses ...string) ([]*Project, error)
	FindByClientAndStatus(ctx context.Context, email, status string) ([]*Project, error)
	FindRecent(ctx context.Context, email string, limit int64) ([]*Project, error)
	FindByDeveloper(ctx context.Context, developerID string) ([]*Project, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*Project, error)
	Create(ctx context.Context, project *Project) error
	Update(ctx context.Context, id string, fields bson.M) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(collection *mongo.Collection) Repository {
	return &mongoRepository{collection: collection}
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*Project, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer cursor.Close(ctx)

	projects := []*Project{}
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}

func (r *mongoRepository) FindAll(ctx context.Context) ([]*Project, error) {
	return r.find(ctx, bson.M{}, newestFirst())
}

func (r *mongoRepository) FindByID(ctx context.Context, id string) (*Project, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrProjectNotFound
	}

	var project Project
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&project)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

func (r *mongoRepository) FindByClientEmail(ctx context.Context, email string) ([]*Project, error) {
	return r.find(ctx, bson.M{"clientEmail": email}, newestFirst())
}

func (r *mongoRepository) FindByStatus(ctx context.Context, statuses ...string) ([]*Project, error) {
	return r.find(ctx, bson.M{"status": bson.M{"$in": statuses}}, newestFirst())
}

func (r *mongoRepository) FindByClientAndStatus(ctx context.Context, email, status string) ([]*Project, error) {
	return r.find(ctx, bson.M{"clientEmail": email, "status": status}, newestFirst())
}

func (r *mongoRepository) FindRecent(ctx context.Context, email string, limit int64) ([]*Project, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return r.find(ctx, bson.M{"clientEmail": email}, newestFirst().SetLimit(limit))
}

func (r *mongoRepository) FindByDeveloper(ctx context.Context, developerID string) ([]*Project, error) {
	return r.find(ctx, bson.M{"assignedDevelopers": developerID}, newestFirst())
}

func (r *mongoRepository) FindOverdue(ctx context.Context, now time.Time) ([]*Project, error) {
	return r.find(ctx, bson.M{
		"status":   workflows.StatusInProgress,
		"deadline": bson.M{"$lt": now},
	})
}

func (r *mongoRepository) Create(ctx context.Context, project *Project) error {
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, project); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *mongoRepository) Update(ctx context.Context, id string, fields bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrProjectNotFound
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProjectNotFound
	}
	return nil
}
