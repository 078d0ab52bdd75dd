package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"resumerag/internal/domain"
)

// MockStore is a mock implementation of port.RetrievalStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListDocuments(ctx context.Context, slugs []string) ([]domain.DocumentRef, error) {
	args := m.Called(ctx, slugs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentRef), args.Error(1)
}

func (m *MockStore) NearestChunks(ctx context.Context, docID int64, query []float32, limit int) ([]domain.RetrievedChunk, error) {
	args := m.Called(ctx, docID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedChunk), args.Error(1)
}

func (m *MockStore) ChunksByIndex(ctx context.Context, docID int64, query []float32, indices []int) ([]domain.RetrievedChunk, error) {
	args := m.Called(ctx, docID, query, indices)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedChunk), args.Error(1)
}

// MockEmbedder is a mock implementation of port.Embedder.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) Dimension() int    { return 3 }
func (m *MockEmbedder) ModelName() string { return "mock-embedder" }

// stubLimiter answers every check the same way.
type stubLimiter struct {
	allowed bool
	resetAt time.Time
	calls   int
}

func (l *stubLimiter) Allow(clientID string) (bool, time.Time) {
	l.calls++
	return l.allowed, l.resetAt
}
