package usecases

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mramzani/barghalarm/internal/entities"
	"github.com/mramzani/barghalarm/internal/integration"
	"github.com/mramzani/barghalarm/internal/repository"
)

const testSeed = `
cities:
  - code: "1"
    name_fa: ساری
    areas:
      - code: "3"
      - code: "4"
    addresses:
      - District X Street 5
      - خیابان امام، کوچه بهار
  - code: "2"
    name_fa: بابل
    areas:
      - code: "9"
`

var portalHeader = []string{"تاریخ", "از ساعت", "تا ساعت", "ناحیه", "آدرس"}

type fetchResponse struct {
	table integration.Table
	err   error
}

// fakeFetcher serves canned tables per area code
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fetchResponse
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[string]fetchResponse)}
}

func (f *fakeFetcher) setRows(area string, rows ...[]string) {
	f.responses[area] = fetchResponse{table: integration.Table{Header: portalHeader, Rows: rows}}
}

func (f *fakeFetcher) setError(area string, err error) {
	f.responses[area] = fetchResponse{err: err}
}

func (f *fakeFetcher) FetchOutageRows(_ context.Context, _, _, areaCode string) (integration.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, areaCode)
	r := f.responses[areaCode]
	return r.table, r.err
}

type fakeAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *fakeAlerter) Alert(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, text)
	return nil
}

func newTestRepository(t *testing.T) *repository.SQLRepository {
	t.Helper()
	repo, err := repository.NewSQLRepository(repository.DriverSQLite, filepath.Join(t.TempDir(), "usecases.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	seed, err := repository.ParseSeed([]byte(testSeed))
	require.NoError(t, err)
	_, err = repo.Seed(context.Background(), seed)
	require.NoError(t, err)
	return repo
}

func testArea(t *testing.T, repo *repository.SQLRepository, code string) entities.Area {
	t.Helper()
	areas, err := repo.ListAreas(context.Background(), []string{code})
	require.NoError(t, err)
	require.Len(t, areas, 1)
	return areas[0]
}

func addressID(t *testing.T, repo *repository.SQLRepository, cityID int64, label string) int64 {
	t.Helper()
	id, found, err := repo.FindAddressIDByLabel(context.Background(), cityID, label)
	require.NoError(t, err)
	require.True(t, found, "address %q not stored", label)
	return id
}
