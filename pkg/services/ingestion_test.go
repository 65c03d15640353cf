package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/epd-normalizer/pkg/apperrors"
	"github.com/ekaya-inc/epd-normalizer/pkg/epd"
	"github.com/ekaya-inc/epd-normalizer/pkg/indicators"
	"github.com/ekaya-inc/epd-normalizer/pkg/metrics"
	"github.com/ekaya-inc/epd-normalizer/pkg/models"
	"github.com/ekaya-inc/epd-normalizer/pkg/repositories"
	"github.com/ekaya-inc/epd-normalizer/pkg/translation"
)

// ============================================================================
// Mock Implementations for Ingestion Service Tests
// ============================================================================

type mockDataStockRepo struct {
	mu     sync.Mutex
	stocks map[string]int64
	err    error
}

func newMockDataStockRepo() *mockDataStockRepo {
	return &mockDataStockRepo{stocks: make(map[string]int64)}
}

func (m *mockDataStockRepo) GetOrCreate(ctx context.Context, name, uuid string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if id, ok := m.stocks[uuid]; ok {
		return id, nil
	}
	id := int64(len(m.stocks) + 1)
	m.stocks[uuid] = id
	return id, nil
}

func (m *mockDataStockRepo) GetByUUID(ctx context.Context, uuid string) (*models.DataStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.stocks[uuid]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &models.DataStock{ID: id, UUID: uuid}, nil
}

type mockProductRepo struct {
	mu       sync.Mutex
	stored   map[string]int64
	storeErr map[string]error
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		stored:   make(map[string]int64),
		storeErr: make(map[string]error),
	}
}

func (m *mockProductRepo) Store(ctx context.Context, p *models.Product, datastockID int64) (repositories.StoreOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.storeErr[p.ProcessID]; err != nil {
		return 0, err
	}
	if _, ok := m.stored[p.ProcessID]; ok {
		return repositories.StoreSkipped, nil
	}
	m.stored[p.ProcessID] = datastockID
	return repositories.StoreInserted, nil
}

func (m *mockProductRepo) Exists(ctx context.Context, processID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stored[processID]
	return ok, nil
}

func (m *mockProductRepo) CountChildren(ctx context.Context, processID string) (*repositories.ChildCounts, error) {
	return &repositories.ChildCounts{}, nil
}

func assertMetrics(t *testing.T, m *metrics.IngestMetrics, name, expected string) {
	t.Helper()
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), name))
}

func noopScope(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

// ============================================================================
// Fixtures
// ============================================================================

const defaultFolder = "data_stock_Default_uuid_1111-2222_20240101"

func docJSON(uuid, category string) []byte {
	return []byte(fmt.Sprintf(`{
	  "processInformation": {
	    "dataSetInformation": {"UUID": %q, "classificationInformation": {"classification": [
	      {"name": "oekobau.dat", "class": [{"level": 0, "value": %q}]}
	    ]}},
	    "quantitativeReference": {"referenceToReferenceFlow": [0]}
	  },
	  "administrativeInformation": {"publicationAndOwnership": {"dataSetVersion": "00.01.000"}},
	  "exchanges": {"exchange": [{"dataSetInternalID": 0}]}
	}`, uuid, category))
}

func noUUIDDoc() []byte {
	return []byte(`{
	  "processInformation": {"quantitativeReference": {"referenceToReferenceFlow": [0]}},
	  "administrativeInformation": {"publicationAndOwnership": {"dataSetVersion": "1"}},
	  "exchanges": {"exchange": [{"dataSetInternalID": 0}]}
	}`)
}

type ingestionTestContext struct {
	dataStocks *mockDataStockRepo
	products   *mockProductRepo
	metrics    *metrics.IngestMetrics
}

func newIngestionTest() *ingestionTestContext {
	return &ingestionTestContext{
		dataStocks: newMockDataStockRepo(),
		products:   newMockProductRepo(),
		metrics:    metrics.New(),
	}
}

func (tc *ingestionTestContext) service(opts IngestOptions) IngestionService {
	parser := epd.NewParser(
		translation.New(map[string]string{"Beton": "Concrete"}),
		indicators.NewDefaultResolver(),
		zap.NewNop(),
	)
	return NewIngestionService(tc.dataStocks, tc.products, parser, noopScope, tc.metrics, opts, zap.NewNop())
}

// ============================================================================
// Tests
// ============================================================================

func TestIngestionService_OneGoodOneInvalidDocument(t *testing.T) {
	tc := newIngestionTest()
	fsys := fstest.MapFS{
		defaultFolder + "/a.json": {Data: docJSON("aaaa", "Beton")},
		defaultFolder + "/b.json": {Data: noUUIDDoc()},
	}

	report, err := tc.service(IngestOptions{Workers: 1}).Run(context.Background(), fsys)
	require.NoError(t, err)

	require.Len(t, report.Folders, 1)
	folder := report.Folders[0]
	assert.Equal(t, FolderCompleted, folder.Status)
	assert.Equal(t, "Default", folder.DataStockName)
	assert.Equal(t, "1111-2222", folder.DataStockUUID)
	assert.Equal(t, int64(1), folder.DataStockID)
	assert.Equal(t, "1 of 2 processed", folder.Summary())
	assert.Equal(t, "1 of 2 processed", report.Summary())

	require.Len(t, folder.Files, 2)
	assert.Equal(t, FileStored, folder.Files[0].Status)
	assert.Equal(t, "aaaa_00.01.000", folder.Files[0].ProcessID)
	assert.Equal(t, FileParseFailed, folder.Files[1].Status)
	assert.ErrorIs(t, folder.Files[1].Err, epd.ErrMissingUUID)

	assert.Equal(t, int64(1), tc.products.stored["aaaa_00.01.000"])
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assert.NotEmpty(t, report.RunID)

	assertMetrics(t, tc.metrics, "epd_files_total", `
# HELP epd_files_total Total number of EPD documents handled, by outcome
# TYPE epd_files_total counter
epd_files_total{status="parse_failed"} 1
epd_files_total{status="stored"} 1
`)
	assertMetrics(t, tc.metrics, "epd_folders_total", `
# HELP epd_folders_total Total number of datastock folders handled, by outcome
# TYPE epd_folders_total counter
epd_folders_total{status="completed"} 1
`)
}

func TestIngestionService_SecondRunSkipsExistingProducts(t *testing.T) {
	tc := newIngestionTest()
	fsys := fstest.MapFS{
		defaultFolder + "/a.json": {Data: docJSON("aaaa", "Beton")},
	}
	svc := tc.service(IngestOptions{})

	_, err := svc.Run(context.Background(), fsys)
	require.NoError(t, err)
	report, err := svc.Run(context.Background(), fsys)
	require.NoError(t, err)

	require.Len(t, report.Folders[0].Files, 1)
	assert.Equal(t, FileSkipped, report.Folders[0].Files[0].Status)
	assert.Equal(t, "1 of 1 processed", report.Summary())
	assert.Len(t, tc.products.stored, 1)
}

func TestIngestionService_FolderSelection(t *testing.T) {
	tc := newIngestionTest()
	fsys := fstest.MapFS{
		"data_stock_Bad_Name/a.json": {Data: docJSON("bbbb", "Beton")},
		"other_folder/a.json":        {Data: docJSON("cccc", "Beton")},
		"data_stock_loose.json":      {Data: docJSON("dddd", "Beton")},
		defaultFolder + "/a.json":    {Data: docJSON("aaaa", "Beton")},
	}

	report, err := tc.service(IngestOptions{}).Run(context.Background(), fsys)
	require.NoError(t, err)

	require.Len(t, report.Folders, 2, "only data_stock_ directories are visited")
	assert.Equal(t, "data_stock_Bad_Name", report.Folders[0].Folder)
	assert.Equal(t, FolderSkipped, report.Folders[0].Status)
	assert.NotEmpty(t, report.Folders[0].Reason)
	assert.Empty(t, report.Folders[0].Files)
	assert.Equal(t, FolderCompleted, report.Folders[1].Status)
	assert.Equal(t, "1 of 1 processed", report.Summary())
}

func TestIngestionService_IgnoresNonJSONFiles(t *testing.T) {
	tc := newIngestionTest()
	fsys := fstest.MapFS{
		defaultFolder + "/a.json":          {Data: docJSON("aaaa", "Beton")},
		defaultFolder + "/notes.txt":       {Data: []byte("not a document")},
		defaultFolder + "/nested/b.json":   {Data: docJSON("bbbb", "Beton")},
		defaultFolder + "/c.json.orig":     {Data: []byte("{}")},
		defaultFolder + "/d.JSON-excluded": {Data: []byte("{}")},
	}

	report, err := tc.service(IngestOptions{}).Run(context.Background(), fsys)
	require.NoError(t, err)
	require.Len(t, report.Folders[0].Files, 1)
	assert.Equal(t, defaultFolder+"/a.json", report.Folders[0].Files[0].Path)
}

func TestIngestionService_DataStockFailureSkipsFolder(t *testing.T) {
	tc := newIngestionTest()
	tc.dataStocks.err = errors.New("connection refused")
	fsys := fstest.MapFS{
		defaultFolder + "/a.json": {Data: docJSON("aaaa", "Beton")},
	}

	report, err := tc.service(IngestOptions{}).Run(context.Background(), fsys)
	require.NoError(t, err)

	require.Len(t, report.Folders, 1)
	assert.Equal(t, FolderFailed, report.Folders[0].Status)
	assert.Contains(t, report.Folders[0].Reason, "connection refused")
	assert.Empty(t, tc.products.stored)
	assertMetrics(t, tc.metrics, "epd_folders_total", `
# HELP epd_folders_total Total number of datastock folders handled, by outcome
# TYPE epd_folders_total counter
epd_folders_total{status="failed"} 1
`)
}

func TestIngestionService_ScopeFailureMarksStoreFailed(t *testing.T) {
	tc := newIngestionTest()
	calls := 0
	var mu sync.Mutex
	failing := func(ctx context.Context) (context.Context, func(), error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > 1 {
			return nil, nil, errors.New("pool exhausted")
		}
		return ctx, func() {}, nil
	}
	parser := epd.NewParser(translation.New(nil), indicators.NewDefaultResolver(), zap.NewNop())
	svc := NewIngestionService(tc.dataStocks, tc.products, parser, failing, nil, IngestOptions{}, zap.NewNop())

	report, err := svc.Run(context.Background(), fstest.MapFS{
		defaultFolder + "/a.json": {Data: docJSON("aaaa", "Beton")},
	})
	require.NoError(t, err)
	require.Len(t, report.Folders[0].Files, 1)
	assert.Equal(t, FileStoreFailed, report.Folders[0].Files[0].Status)
	assert.Equal(t, "0 of 1 processed", report.Summary())
}

func TestIngestionService_StoreFailureDoesNotStopFolder(t *testing.T) {
	tc := newIngestionTest()
	tc.products.storeErr["bbbb_00.01.000"] = errors.New("insert failed")
	fsys := fstest.MapFS{
		defaultFolder + "/a.json": {Data: docJSON("aaaa", "Beton")},
		defaultFolder + "/b.json": {Data: docJSON("bbbb", "Beton")},
		defaultFolder + "/c.json": {Data: docJSON("cccc", "Beton")},
	}

	report, err := tc.service(IngestOptions{Workers: 2}).Run(context.Background(), fsys)
	require.NoError(t, err)

	files := report.Folders[0].Files
	require.Len(t, files, 3)
	assert.Equal(t, FileStored, files[0].Status)
	assert.Equal(t, FileStoreFailed, files[1].Status)
	assert.Equal(t, "bbbb_00.01.000", files[1].ProcessID)
	assert.Equal(t, FileStored, files[2].Status)
	assert.Equal(t, "2 of 3 processed", report.Summary())
	assert.Equal(t, map[FileStatus]int{FileStored: 2, FileStoreFailed: 1}, report.StatusCounts())
}

func TestIngestionService_ReadFailure(t *testing.T) {
	tc := newIngestionTest()
	fsys := unreadableFS{
		MapFS: fstest.MapFS{
			defaultFolder + "/a.json": {Data: docJSON("aaaa", "Beton")},
			defaultFolder + "/b.json": {Data: docJSON("bbbb", "Beton")},
		},
		unreadable: defaultFolder + "/b.json",
	}

	report, err := tc.service(IngestOptions{}).Run(context.Background(), fsys)
	require.NoError(t, err)
	files := report.Folders[0].Files
	require.Len(t, files, 2)
	assert.Equal(t, FileStored, files[0].Status)
	assert.Equal(t, FileReadFailed, files[1].Status)
	assert.ErrorIs(t, files[1].Err, fs.ErrPermission)
}

func TestIngestionService_ConcurrentWorkersKeepFileOrder(t *testing.T) {
	tc := newIngestionTest()
	fsys := fstest.MapFS{}
	categories := []string{"Ziegel", "Beton", "Holz", "Glas", "Ziegel", "Stahl"}
	for i, cat := range categories {
		name := fmt.Sprintf("%s/doc_%02d.json", defaultFolder, i)
		fsys[name] = &fstest.MapFile{Data: docJSON(fmt.Sprintf("u%02d", i), cat)}
	}

	report, err := tc.service(IngestOptions{Workers: 4}).Run(context.Background(), fsys)
	require.NoError(t, err)

	files := report.Folders[0].Files
	require.Len(t, files, len(categories))
	for i, f := range files {
		assert.Equal(t, fmt.Sprintf("u%02d_00.01.000", i), f.ProcessID)
		assert.Equal(t, FileStored, f.Status)
	}
	// Untranslated terms are merged in document order regardless of completion order.
	assert.Equal(t, []string{"Ziegel", "Holz", "Glas", "Stahl"}, report.Untranslated.Terms())
	assertMetrics(t, tc.metrics, "epd_untranslated_terms", `
# HELP epd_untranslated_terms Number of distinct category terms without a translation
# TYPE epd_untranslated_terms gauge
epd_untranslated_terms 4
`)
}

func TestIngestionService_MaxFilesPerFolder(t *testing.T) {
	tc := newIngestionTest()
	fsys := fstest.MapFS{
		defaultFolder + "/a.json":                                {Data: docJSON("aaaa", "Beton")},
		defaultFolder + "/b.json":                                {Data: docJSON("bbbb", "Beton")},
		defaultFolder + "/c.json":                                {Data: docJSON("cccc", "Beton")},
		"data_stock_Other_uuid_3333-4444_20240101/a.json":        {Data: docJSON("dddd", "Beton")},
		"data_stock_Other_uuid_3333-4444_20240101/b.json":        {Data: docJSON("eeee", "Beton")},
		"data_stock_Other_uuid_3333-4444_20240101/c.json":        {Data: docJSON("ffff", "Beton")},
		"data_stock_Other_uuid_3333-4444_20240101/d.json":        {Data: docJSON("gggg", "Beton")},
		"data_stock_Other_uuid_3333-4444_20240101/not-json.yaml": {Data: []byte("x: 1")},
	}

	report, err := tc.service(IngestOptions{MaxFiles: 2}).Run(context.Background(), fsys)
	require.NoError(t, err)

	require.Len(t, report.Folders, 2)
	for _, folder := range report.Folders {
		assert.Len(t, folder.Files, 2, folder.Folder)
	}
	assert.Equal(t, "4 of 4 processed", report.Summary())
	assert.Len(t, tc.dataStocks.stocks, 2)
}

func TestIngestionService_CancelledContext(t *testing.T) {
	tc := newIngestionTest()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := tc.service(IngestOptions{}).Run(ctx, fstest.MapFS{
		defaultFolder + "/a.json": {Data: docJSON("aaaa", "Beton")},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsContextDone(err))
	require.NotNil(t, report)
	assert.Empty(t, report.Folders)
	assert.Empty(t, tc.products.stored)
}

func TestIngestionService_MissingRoot(t *testing.T) {
	tc := newIngestionTest()
	_, err := tc.service(IngestOptions{}).Run(context.Background(), missingRootFS{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list data directory")
	assert.False(t, IsContextDone(err))
}

// unreadableFS fails to open one file while still listing it.
type unreadableFS struct {
	fstest.MapFS
	unreadable string
}

func (u unreadableFS) Open(name string) (fs.File, error) {
	if name == u.unreadable {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return u.MapFS.Open(name)
}

func (u unreadableFS) ReadFile(name string) ([]byte, error) {
	if name == u.unreadable {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrPermission}
	}
	return u.MapFS.ReadFile(name)
}

type missingRootFS struct{}

func (missingRootFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
