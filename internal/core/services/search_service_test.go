// internal/core/services/search_service_test.go
package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/ammerola/storefront-be/internal/core/services"
	"github.com/ammerola/storefront-be/test/helpers"
	"github.com/ammerola/storefront-be/test/mocks"
)

func titled(title string, overrides ...func(*domain.Product)) domain.Product {
	return *helpers.CreateTestProduct(append([]func(*domain.Product){func(p *domain.Product) {
		p.Title = title
		p.Description = ""
		p.Tags = nil
	}}, overrides...)...)
}

func resultTitles(results []domain.SearchResult) []string {
	titles := make([]string, 0, len(results))
	for _, r := range results {
		titles = append(titles, r.Title)
	}
	return titles
}

func newSearchService(t *testing.T, cache ports.CacheRepository, analytics ports.SearchAnalytics) (*services.SearchService, *mocks.MockProductRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProductRepository(ctrl)
	svc := services.NewSearchService(repo, cache, analytics, services.DefaultSearchSettings(), helpers.TestLogger())
	return svc, repo
}

func TestSearchService_RejectsShortQueries(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "empty_query", query: ""},
		{name: "whitespace_only", query: "   "},
		{name: "single_rune", query: " a "},
		{name: "single_multibyte_rune", query: "ñ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newSearchService(t, nil, nil)

			resp := svc.SearchProducts(context.Background(), tt.query, ports.SearchOptions{UseFuzzy: true})

			assert.True(t, resp.OK)
			assert.Empty(t, resp.Results)
			assert.Zero(t, resp.Total)
		})
	}
}

func TestSearchService_ExactMatchesShortCircuit(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	exact := []domain.Product{titled("Remera Roja"), titled("Remera Azul")}
	repo.EXPECT().SearchExact(gomock.Any(), "remera", 4).Return(exact, nil)
	// ListRecent must not be called: 2 >= 4/2

	resp := svc.SearchProducts(context.Background(), "  Remera ", ports.SearchOptions{Limit: 4, UseFuzzy: true})

	require.True(t, resp.OK)
	assert.Equal(t, []string{"Remera Roja", "Remera Azul"}, resultTitles(resp.Results))
	assert.Equal(t, 2, resp.Total)
	assert.Empty(t, resp.Suggestion)
}

func TestSearchService_FuzzyFallbackToleratesTypos(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	pullover := titled("Pullover Azul")
	workingSet := []domain.Product{titled("Remera Básica"), pullover, titled("Campera de Jean")}

	repo.EXPECT().SearchExact(gomock.Any(), "pvllover", 10).Return(nil, nil)
	repo.EXPECT().ListRecent(gomock.Any(), 1000).Return(workingSet, nil)

	resp := svc.SearchProducts(context.Background(), "pvllover", ports.SearchOptions{UseFuzzy: true})

	require.True(t, resp.OK)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, pullover.ID, resp.Results[0].ID)
	assert.Greater(t, resp.Results[0].FuzzyScore, 70)
	assert.Equal(t, "Pullover Azul", resp.Suggestion)
}

func TestSearchService_MergeDeduplicatesAndTruncates(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	exact := titled("Buzo Canguro")
	workingSet := []domain.Product{
		exact,
		titled("Buzo Liso"),
		titled("Buzo Rayado"),
		titled("Buzo Oversize"),
	}

	repo.EXPECT().SearchExact(gomock.Any(), "buzo", 3).Return([]domain.Product{exact}, nil)
	repo.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return(workingSet, nil)

	resp := svc.SearchProducts(context.Background(), "buzo", ports.SearchOptions{Limit: 3, UseFuzzy: true})

	require.True(t, resp.OK)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, exact.ID, resp.Results[0].ID, "exact matches come first")
	assert.Zero(t, resp.Results[0].FuzzyScore)

	ids := map[string]int{}
	for _, r := range resp.Results {
		ids[r.ID.String()]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "product %s appears more than once", id)
	}
	assert.Empty(t, resp.Suggestion, "no suggestion once three results are found")
}

func TestSearchService_FuzzyDisabled(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	repo.EXPECT().SearchExact(gomock.Any(), "pvllover", 10).Return(nil, nil)

	resp := svc.SearchProducts(context.Background(), "pvllover", ports.SearchOptions{UseFuzzy: false})

	assert.True(t, resp.OK)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Suggestion)
}

func TestSearchService_SuggestsClosestTitle(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	workingSet := []domain.Product{titled("Gorra Trucker"), titled("Zapatillas Urbanas")}
	repo.EXPECT().SearchExact(gomock.Any(), "zapatilas", 10).Return(nil, nil)
	repo.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return(workingSet, nil)

	resp := svc.SearchProducts(context.Background(), "zapatilas", ports.SearchOptions{UseFuzzy: true})

	require.True(t, resp.OK)
	assert.Equal(t, "Zapatillas Urbanas", resp.Suggestion)
}

func TestSearchService_NoSuggestionForUnrelatedQuery(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	repo.EXPECT().SearchExact(gomock.Any(), "xyzzy", 10).Return(nil, nil)
	repo.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return([]domain.Product{titled("Gorra Trucker")}, nil)

	resp := svc.SearchProducts(context.Background(), "xyzzy", ports.SearchOptions{UseFuzzy: true})

	require.True(t, resp.OK)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Suggestion)
}

func TestSearchService_StoreErrorsSurfaceAsNotOK(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mocks.MockProductRepository)
	}{
		{
			name: "exact_search_fails",
			setup: func(m *mocks.MockProductRepository) {
				m.EXPECT().SearchExact(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
			},
		},
		{
			name: "working_set_load_fails",
			setup: func(m *mocks.MockProductRepository) {
				m.EXPECT().SearchExact(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
				m.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newSearchService(t, nil, nil)
			tt.setup(repo)

			resp := svc.SearchProducts(context.Background(), "remera", ports.SearchOptions{UseFuzzy: true})

			assert.False(t, resp.OK)
			assert.Empty(t, resp.Results)
			assert.Zero(t, resp.Total)
		})
	}
}

func TestSearchService_AnnotatesBadges(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	both := titled("Remera Estampada", func(p *domain.Product) {
		p.Stats = domain.ProductStats{OrderedQuantity: 51, FavoriteCount: 11}
	})
	trending := titled("Remera Lisa", func(p *domain.Product) {
		p.Stats = domain.ProductStats{OrderedQuantity: 50, FavoriteCount: 11}
	})
	plain := titled("Remera Basica", func(p *domain.Product) {
		p.Stats = domain.ProductStats{OrderedQuantity: 50, FavoriteCount: 10}
	})

	repo.EXPECT().SearchExact(gomock.Any(), "remera", 4).Return([]domain.Product{both, trending, plain}, nil)

	resp := svc.SearchProducts(context.Background(), "remera", ports.SearchOptions{Limit: 4})

	require.Len(t, resp.Results, 3)
	assert.Equal(t, domain.BadgeBestseller, resp.Results[0].Badge)
	assert.Equal(t, domain.BadgeTrending, resp.Results[1].Badge)
	assert.Equal(t, domain.BadgeNone, resp.Results[2].Badge)
}

func TestSearchService_WorkingSetIsCached(t *testing.T) {
	redis := helpers.SetupTestRedis(t)
	cache := newTestCache(redis)

	svc, repo := newSearchService(t, cache, nil)

	workingSet := []domain.Product{titled("Pullover Azul")}
	repo.EXPECT().SearchExact(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	repo.EXPECT().ListRecent(gomock.Any(), gomock.Any()).Return(workingSet, nil).Times(1)

	first := svc.SearchProducts(context.Background(), "pvllover", ports.SearchOptions{UseFuzzy: true})
	second := svc.SearchProducts(context.Background(), "pulover", ports.SearchOptions{UseFuzzy: true})

	require.True(t, first.OK)
	require.True(t, second.OK)
	require.Len(t, second.Results, 1)
	assert.Equal(t, workingSet[0].ID, second.Results[0].ID)
	assert.True(t, redis.Server.Exists(services.WorkingSetCacheKey))
}

func TestSearchService_CancelledSearchDoesNotFailSharedLoad(t *testing.T) {
	svc, repo := newSearchService(t, nil, nil)

	workingSet := []domain.Product{titled("Pullover Azul")}
	loading := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	repo.EXPECT().SearchExact(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	repo.EXPECT().ListRecent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ int) ([]domain.Product, error) {
			once.Do(func() { close(loading) })
			<-release
			return workingSet, ctx.Err()
		}).MinTimes(1)

	opts := ports.SearchOptions{UseFuzzy: true}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	first := make(chan *ports.SearchResponse, 1)
	go func() { first <- svc.SearchProducts(ctxA, "pulover", opts) }()
	<-loading

	second := make(chan *ports.SearchResponse, 1)
	go func() { second <- svc.SearchProducts(context.Background(), "pulover", opts) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case resp := <-first:
		assert.False(t, resp.OK, "the cancelled search gives up")
	case <-time.After(time.Second):
		t.Fatal("cancelled search kept waiting on the shared load")
	}

	close(release)
	resp := <-second
	require.True(t, resp.OK)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Pullover Azul", resp.Results[0].Title)
}

func TestSearchService_RecordsAnalytics(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProductRepository(ctrl)
	analytics := mocks.NewMockSearchAnalytics(ctrl)

	recorded := make(chan domain.SearchLog, 1)
	analytics.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry domain.SearchLog) error {
			recorded <- entry
			return errors.New("queue unavailable")
		})
	repo.EXPECT().SearchExact(gomock.Any(), "remera", 2).Return([]domain.Product{titled("Remera")}, nil)

	svc := services.NewSearchService(repo, nil, analytics, services.DefaultSearchSettings(), helpers.TestLogger())
	resp := svc.SearchProducts(context.Background(), "Remera", ports.SearchOptions{Limit: 2, UserID: "user-1"})
	require.True(t, resp.OK, "analytics failures never reach the caller")

	select {
	case entry := <-recorded:
		assert.Equal(t, "Remera", entry.Term)
		assert.Equal(t, 1, entry.ResultsCount)
		assert.Equal(t, "user-1", entry.UserID)
	case <-time.After(time.Second):
		t.Fatal("search was not recorded")
	}
}
