package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"mfanalytics/analytics"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/mgo.v2/bson"
)

var ErrScreenNotFound = errors.New("screen not found")

// SavedScreen is a fund selection request kept for re-running, with the
// outcome of its last run.
type SavedScreen struct {
	ID            string                   `bson:"_id" json:"id"`
	Keyword       string                   `bson:"keyword" json:"keyword"`
	Codes         []string                 `bson:"codes,omitempty" json:"codes,omitempty"`
	BenchmarkCode string                   `bson:"benchmarkCode" json:"benchmarkCode"`
	Window        WindowSpec               `bson:"window" json:"window"`
	RiskFreeRate  float64                  `bson:"riskFreeRate" json:"riskFreeRate"`
	Thresholds    analytics.Thresholds     `bson:"thresholds" json:"thresholds"`
	Shortlist     []analytics.FundIdentity `bson:"shortlist" json:"shortlist"`
	Excluded      []analytics.Exclusion    `bson:"excluded" json:"excluded"`
	Evaluated     int                      `bson:"evaluated" json:"evaluated"`
	CreatedAt     time.Time                `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time                `bson:"updatedAt" json:"updatedAt"`
}

type ScreenStore interface {
	Save(ctx context.Context, screen SavedScreen) error
	Get(ctx context.Context, id string) (SavedScreen, error)
	List(ctx context.Context, limit int64) ([]SavedScreen, error)
	Each(ctx context.Context, fn func(SavedScreen) error) error
}

type mongoScreenStore struct {
	collection *mongo.Collection
}

func NewMongoScreenStore(client *mongo.Client, database, collection string) ScreenStore {
	return &mongoScreenStore{collection: client.Database(database).Collection(collection)}
}

func (s *mongoScreenStore) Save(ctx context.Context, screen SavedScreen) error {
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": screen.ID}, screen, options.Replace().SetUpsert(true))
	return err
}

func (s *mongoScreenStore) Get(ctx context.Context, id string) (SavedScreen, error) {
	var screen SavedScreen
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&screen)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SavedScreen{}, ErrScreenNotFound
	}
	return screen, err
}

func (s *mongoScreenStore) List(ctx context.Context, limit int64) ([]SavedScreen, error) {
	findOptions := options.Find().SetSort(bson.M{"updatedAt": -1}).SetLimit(limit)
	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	screens := []SavedScreen{}
	if err := cursor.All(ctx, &screens); err != nil {
		return nil, err
	}
	return screens, nil
}

func (s *mongoScreenStore) Each(ctx context.Context, fn func(SavedScreen) error) error {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var screen SavedScreen
		if err := cursor.Decode(&screen); err != nil {
			return err
		}
		if err := fn(screen); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// memoryScreenStore backs deployments without MongoDB.
type memoryScreenStore struct {
	mu      sync.RWMutex
	screens map[string]SavedScreen
}

func NewMemoryScreenStore() ScreenStore {
	return &memoryScreenStore{screens: map[string]SavedScreen{}}
}

func (s *memoryScreenStore) Save(_ context.Context, screen SavedScreen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screens[screen.ID] = screen
	return nil
}

func (s *memoryScreenStore) Get(_ context.Context, id string) (SavedScreen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	screen, ok := s.screens[id]
	if !ok {
		return SavedScreen{}, ErrScreenNotFound
	}
	return screen, nil
}

func (s *memoryScreenStore) sorted() []SavedScreen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SavedScreen, 0, len(s.screens))
	for _, screen := range s.screens {
		out = append(out, screen)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (s *memoryScreenStore) List(_ context.Context, limit int64) ([]SavedScreen, error) {
	out := s.sorted()
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryScreenStore) Each(_ context.Context, fn func(SavedScreen) error) error {
	for _, screen := range s.sorted() {
		if err := fn(screen); err != nil {
			return err
		}
	}
	return nil
}
