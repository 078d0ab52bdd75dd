package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"resumerag/internal/adapter/validator"
	"resumerag/internal/domain"
)

var qvec = []float32{1, 0, 0}

func newTestValidator() *validator.Validator {
	return validator.New(validator.Options{
		MinQueryLength: 1,
		MaxQueryLength: 1000,
		MaxSlugs:       10,
		AllowedSlugs:   []string{"resume", "about"},
	})
}

func newTestRetriever(st *MockStore, emb *MockEmbedder, opts RetrieveOptions) *RetrieveUseCase {
	return NewRetrieveUseCase(st, emb, newTestValidator(), nil, NewPackUseCase(4500, 2), opts, nil)
}

func hit(docID int64, slug string, idx int, sim float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		DocumentID:   docID,
		DocumentSlug: slug,
		ChunkIndex:   idx,
		Content:      slug + " passage",
		Similarity:   sim,
	}
}

func TestRetrieveRejectsShortQueryBeforeAnyCall(t *testing.T) {
	for _, q := range []string{"", "   "} {
		st, emb := new(MockStore), new(MockEmbedder)
		u := newTestRetriever(st, emb, DefaultRetrieveOptions())

		_, err := u.Retrieve(context.Background(), nil, q, "client")

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		st.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
		emb.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	}
}

func TestRetrieveRejectsLongQuery(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	_, err := u.Retrieve(context.Background(), nil, strings.Repeat("x", 1001), "")

	var re *domain.RetrieverError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 400, re.Status)
	assert.Equal(t, []string{"Query is too long (max 1000 characters)"}, re.Details["errors"])
	st.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
}

func TestRetrieveRejectsBadIdentifiersByDefault(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	_, err := u.Retrieve(context.Background(), []string{"Resume!!", "about", "unknown-doc"}, "skills?", "")

	require.ErrorIs(t, err, domain.ErrValidation)
	st.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
}

func TestRetrieveLenientIdentifiersProceeds(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	opts := DefaultRetrieveOptions()
	opts.LenientIdentifiers = true
	u := newTestRetriever(st, emb, opts)

	st.On("ListDocuments", mock.Anything, []string{"resume", "about"}).Return([]domain.DocumentRef{}, nil)

	got, err := u.Retrieve(context.Background(), []string{"Resume!!", "about", "unknown-doc"}, "skills?", "")

	require.NoError(t, err)
	assert.Empty(t, got)
	st.AssertExpectations(t)
	emb.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestRetrieveLenientStillRejectsBadQuery(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	opts := DefaultRetrieveOptions()
	opts.LenientIdentifiers = true
	u := newTestRetriever(st, emb, opts)

	_, err := u.Retrieve(context.Background(), []string{"unknown-doc"}, "", "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRetrieveRateLimited(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	reset := time.Now().Add(30 * time.Second)
	limiter := &stubLimiter{allowed: false, resetAt: reset}
	u := NewRetrieveUseCase(st, emb, newTestValidator(), limiter, NewPackUseCase(4500, 2), DefaultRetrieveOptions(), nil)

	_, err := u.Retrieve(context.Background(), nil, "skills?", "1.2.3.4")

	var re *domain.RetrieverError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, domain.CodeRateLimited, re.Code)
	assert.Equal(t, 429, re.Status)
	got, ok := re.ResetAt()
	require.True(t, ok)
	assert.Equal(t, reset, got)
	st.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
}

func TestRetrieveSkipsLimiterWithoutClient(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	limiter := &stubLimiter{allowed: false}
	u := NewRetrieveUseCase(st, emb, newTestValidator(), limiter, NewPackUseCase(4500, 2), DefaultRetrieveOptions(), nil)

	st.On("ListDocuments", mock.Anything, []string(nil)).Return([]domain.DocumentRef{}, nil)

	_, err := u.Retrieve(context.Background(), nil, "skills?", "")
	require.NoError(t, err)
	assert.Zero(t, limiter.calls)
}

func TestRetrieveNoDocumentsIsEmpty(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	st.On("ListDocuments", mock.Anything, []string(nil)).Return([]domain.DocumentRef{}, nil)

	got, err := u.Retrieve(context.Background(), nil, "skills?", "")

	require.NoError(t, err)
	assert.Empty(t, got)
	emb.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestRetrieveDocumentLookupFailure(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	st.On("ListDocuments", mock.Anything, mock.Anything).Return(nil, errors.New("disk on fire"))

	_, err := u.Retrieve(context.Background(), nil, "skills?", "")

	require.ErrorIs(t, err, domain.ErrDatabase)
	assert.NotContains(t, (err.(*domain.RetrieverError)).PublicDetails(), "disk on fire")
}

func TestRetrieveEmbeddingFailureSkipsCandidateSearch(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	st.On("ListDocuments", mock.Anything, mock.Anything).Return([]domain.DocumentRef{{ID: 1, Slug: "resume"}}, nil)
	emb.On("Embed", mock.Anything, []string{"skills?"}).Return(nil, errors.New("provider down"))

	_, err := u.Retrieve(context.Background(), nil, "  skills?  ", "")

	require.ErrorIs(t, err, domain.ErrEmbedding)
	st.AssertNotCalled(t, "NearestChunks", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	emb.AssertNumberOfCalls(t, "Embed", 1)
}

func TestRetrieveWindowsAroundSeed(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	st.On("ListDocuments", mock.Anything, []string{"resume"}).Return([]domain.DocumentRef{{ID: 1, Slug: "resume"}}, nil)
	emb.On("Embed", mock.Anything, []string{"skills?"}).Return([][]float32{qvec}, nil)
	st.On("NearestChunks", mock.Anything, int64(1), qvec, 40).Return([]domain.RetrievedChunk{
		hit(1, "resume", 5, 0.91),
		hit(1, "resume", 20, 0.85),
		hit(1, "resume", 35, 0.40),
	}, nil)
	window := []domain.RetrievedChunk{
		hit(1, "resume", 3, 0.30),
		hit(1, "resume", 4, 0.60),
		hit(1, "resume", 5, 0.91),
		hit(1, "resume", 6, 0.70),
		hit(1, "resume", 7, 0.20),
		hit(1, "resume", 20, 0.85),
		hit(1, "resume", 35, 0.40),
	}
	st.On("ChunksByIndex", mock.Anything, int64(1), qvec, []int{3, 4, 5, 6, 7, 20, 35}).Return(window, nil)

	got, err := u.Retrieve(context.Background(), []string{"resume"}, "skills?", "")

	require.NoError(t, err)
	st.AssertExpectations(t)

	var order []int
	for _, c := range got {
		order = append(order, c.ChunkIndex)
	}
	assert.Equal(t, []int{5, 20, 6, 4, 35, 3, 7}, order)
}

func TestRetrieveIsolatesPerDocumentFailures(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	st.On("ListDocuments", mock.Anything, mock.Anything).Return([]domain.DocumentRef{
		{ID: 1, Slug: "resume"},
		{ID: 2, Slug: "about"},
	}, nil)
	emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{qvec}, nil)
	st.On("NearestChunks", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(nil, errors.New("corrupt"))
	st.On("NearestChunks", mock.Anything, int64(2), mock.Anything, mock.Anything).Return([]domain.RetrievedChunk{
		hit(2, "about", 0, 0.8),
	}, nil)
	st.On("ChunksByIndex", mock.Anything, int64(2), mock.Anything, []int{0, 1, 2}).Return([]domain.RetrievedChunk{
		hit(2, "about", 0, 0.8),
		hit(2, "about", 1, 0.5),
	}, nil)

	got, err := u.Retrieve(context.Background(), nil, "hobbies?", "")

	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, "about", c.DocumentSlug)
	}
	st.AssertNotCalled(t, "ChunksByIndex", mock.Anything, int64(1), mock.Anything, mock.Anything)
}

func TestRetrieveAllDocumentsFailingIsEmpty(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	st.On("ListDocuments", mock.Anything, mock.Anything).Return([]domain.DocumentRef{{ID: 1, Slug: "resume"}}, nil)
	emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{qvec}, nil)
	st.On("NearestChunks", mock.Anything, int64(1), mock.Anything, mock.Anything).Return([]domain.RetrievedChunk{hit(1, "resume", 0, 0.9)}, nil)
	st.On("ChunksByIndex", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(nil, errors.New("gone"))

	got, err := u.Retrieve(context.Background(), nil, "skills?", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveSortedAndWithinBudget(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := NewRetrieveUseCase(st, emb, newTestValidator(), nil, NewPackUseCase(300, 2), DefaultRetrieveOptions(), nil)

	docs := []domain.DocumentRef{{ID: 1, Slug: "resume"}, {ID: 2, Slug: "about"}}
	st.On("ListDocuments", mock.Anything, mock.Anything).Return(docs, nil)
	emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{qvec}, nil)

	for _, d := range docs {
		var cands []domain.RetrievedChunk
		for i := 0; i < 10; i++ {
			c := hit(d.ID, d.Slug, i, float64((int(d.ID)*7+i*3)%10)/10)
			c.Content = strings.Repeat(d.Slug[:1], 40+i*5)
			cands = append(cands, c)
		}
		st.On("NearestChunks", mock.Anything, d.ID, mock.Anything, 40).Return(cands, nil)
		st.On("ChunksByIndex", mock.Anything, d.ID, mock.Anything, mock.Anything).Return(cands, nil)
	}

	got, err := u.Retrieve(context.Background(), nil, "skills?", "")
	require.NoError(t, err)
	require.NotEmpty(t, got)

	total := 0
	for i, c := range got {
		total += len(c.Content) + 2
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Similarity, c.Similarity)
		}
	}
	assert.LessOrEqual(t, total, 300)
}

func TestRetrieveDeterministicAcrossConcurrency(t *testing.T) {
	run := func(concurrency int) []domain.RetrievedChunk {
		st, emb := new(MockStore), new(MockEmbedder)
		opts := DefaultRetrieveOptions()
		opts.Concurrency = concurrency
		u := newTestRetriever(st, emb, opts)

		var docs []domain.DocumentRef
		for id := int64(1); id <= 5; id++ {
			docs = append(docs, domain.DocumentRef{ID: id, Slug: "doc"})
			same := []domain.RetrievedChunk{hit(id, "doc", 0, 0.5)}
			st.On("NearestChunks", mock.Anything, id, mock.Anything, mock.Anything).Return(same, nil)
			st.On("ChunksByIndex", mock.Anything, id, mock.Anything, mock.Anything).Return(same, nil)
		}
		st.On("ListDocuments", mock.Anything, mock.Anything).Return(docs, nil)
		emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{qvec}, nil)

		got, err := u.Retrieve(context.Background(), nil, "q", "")
		require.NoError(t, err)
		return got
	}

	want := run(1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, run(8))
	}
	var ids []int64
	for _, c := range want {
		ids = append(ids, c.DocumentID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
}

func TestRetrieveCancelledContext(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Retrieve(ctx, nil, "skills?", "")

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrUnexpected)
	st.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
}

func TestRetrieveContextReportsBudget(t *testing.T) {
	st, emb := new(MockStore), new(MockEmbedder)
	u := newTestRetriever(st, emb, DefaultRetrieveOptions())

	st.On("ListDocuments", mock.Anything, mock.Anything).Return([]domain.DocumentRef{{ID: 1, Slug: "resume"}}, nil)
	emb.On("Embed", mock.Anything, mock.Anything).Return([][]float32{qvec}, nil)
	one := []domain.RetrievedChunk{hit(1, "resume", 0, 0.9)}
	st.On("NearestChunks", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(one, nil)
	st.On("ChunksByIndex", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(one, nil)

	packed, err := u.Context(context.Background(), nil, " skills? ", "")

	require.NoError(t, err)
	assert.Equal(t, "skills?", packed.Query)
	assert.Equal(t, 4500, packed.BudgetChars)
	assert.Equal(t, len("resume passage")+2, packed.UsedChars)
}
