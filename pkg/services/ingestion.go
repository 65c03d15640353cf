package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/epd-normalizer/pkg/epd"
	"github.com/ekaya-inc/epd-normalizer/pkg/logging"
	"github.com/ekaya-inc/epd-normalizer/pkg/metrics"
	"github.com/ekaya-inc/epd-normalizer/pkg/repositories"
	"github.com/ekaya-inc/epd-normalizer/pkg/translation"
)

// DataStockFolderPrefix marks the top-level folders that hold a datastock.
const DataStockFolderPrefix = "data_stock_"

// maxErrorTextLength bounds error text copied into logs and folder reasons.
const maxErrorTextLength = 300

// dataStockFolderPattern extracts the datastock name and UUID from a folder
// name such as data_stock_Default_uuid_1111-2222_20240101.
var dataStockFolderPattern = regexp.MustCompile(`data_stock_(.+)_uuid_([a-f0-9\-]+)_`)

// DocumentParser turns raw document bytes into a product record graph.
type DocumentParser interface {
	Parse(raw []byte) (*epd.Result, error)
}

// IngestOptions tunes a run.
type IngestOptions struct {
	// Workers is the number of documents handled concurrently; values below 1 mean 1.
	Workers int
	// MaxFiles limits the documents read per folder; 0 means no limit.
	MaxFiles int
}

// IngestionService walks a tree of datastock folders and stores every
// document it can parse. One bad document or folder never stops the run.
type IngestionService interface {
	// Run ingests every datastock folder at the root of fsys. The returned
	// error is non-nil only when the root cannot be listed or ctx ends; the
	// report is returned in both cases with whatever was completed.
	Run(ctx context.Context, fsys fs.FS) (*Report, error)
}

type ingestionService struct {
	dataStockRepo repositories.DataStockRepository
	productRepo   repositories.ProductRepository
	parser        DocumentParser
	withScope     ScopeFunc
	metrics       *metrics.IngestMetrics
	opts          IngestOptions
	logger        *zap.Logger
}

// NewIngestionService creates a new IngestionService.
// metrics may be nil when no metrics are exported.
func NewIngestionService(
	dataStockRepo repositories.DataStockRepository,
	productRepo repositories.ProductRepository,
	parser DocumentParser,
	withScope ScopeFunc,
	m *metrics.IngestMetrics,
	opts IngestOptions,
	logger *zap.Logger,
) IngestionService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &ingestionService{
		dataStockRepo: dataStockRepo,
		productRepo:   productRepo,
		parser:        parser,
		withScope:     withScope,
		metrics:       m,
		opts:          opts,
		logger:        logger.Named("ingestion-service"),
	}
}

var _ IngestionService = (*ingestionService)(nil)

func (s *ingestionService) Run(ctx context.Context, fsys fs.FS) (*Report, error) {
	report := NewReport(uuid.NewString())
	logger := s.logger.With(zap.String("run_id", report.RunID))

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return report, fmt.Errorf("failed to list data directory: %w", err)
	}

	var runErr error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), DataStockFolderPrefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		folder, err := s.ingestFolder(ctx, fsys, entry.Name(), report.Untranslated, logger)
		report.Folders = append(report.Folders, *folder)
		s.recordFolder(folder.Status)
		if err != nil {
			runErr = err
			break
		}
	}

	if s.metrics != nil {
		s.metrics.SetUntranslated(report.Untranslated.Len())
	}
	report.FinishedAt = time.Now().UTC()

	logger.Info("Ingestion run finished",
		zap.String("summary", report.Summary()),
		zap.Int("folders", len(report.Folders)),
		zap.Int("untranslated_terms", report.Untranslated.Len()),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	return report, runErr
}

// ingestFolder handles one datastock folder. The error is non-nil only when
// ctx ended while its documents were being handled.
func (s *ingestionService) ingestFolder(ctx context.Context, fsys fs.FS, dir string, untranslated *translation.TermSet, logger *zap.Logger) (*FolderReport, error) {
	folder := &FolderReport{Folder: dir}
	logger = logger.With(zap.String("folder", dir))

	match := dataStockFolderPattern.FindStringSubmatch(dir)
	if match == nil {
		folder.Status = FolderSkipped
		folder.Reason = "folder name does not match data_stock_<name>_uuid_<uuid>_"
		logger.Warn("Skipping folder", zap.String("reason", folder.Reason))
		return folder, nil
	}
	folder.DataStockName, folder.DataStockUUID = match[1], match[2]

	id, err := s.resolveDataStock(ctx, folder.DataStockName, folder.DataStockUUID)
	if err != nil {
		folder.Status = FolderFailed
		folder.Reason = "failed to resolve datastock: " + logging.TruncateString(logging.SanitizeError(err), maxErrorTextLength)
		logger.Error("Failed to resolve datastock", zap.String("error", logging.SanitizeError(err)))
		return folder, nil
	}
	folder.DataStockID = id

	files, err := listDocuments(fsys, dir, s.opts.MaxFiles)
	if err != nil {
		folder.Status = FolderFailed
		folder.Reason = logging.TruncateString(err.Error(), maxErrorTextLength)
		logger.Error("Failed to list documents", zap.Error(err))
		return folder, nil
	}

	results := make([]FileResult, len(files))
	terms := make([]*translation.TermSet, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], terms[i] = s.ingestFile(gctx, fsys, file, id, logger)
			return nil
		})
	}
	waitErr := g.Wait()

	// Unscheduled documents after cancellation carry no status and are left out.
	for i := range results {
		if results[i].Status == "" {
			continue
		}
		folder.Files = append(folder.Files, results[i])
		untranslated.Merge(terms[i])
	}
	folder.Status = FolderCompleted

	logger.Info("Folder finished",
		zap.String("datastock", folder.DataStockName),
		zap.Int64("datastock_id", id),
		zap.String("summary", folder.Summary()))

	return folder, waitErr
}

func (s *ingestionService) resolveDataStock(ctx context.Context, name, stockUUID string) (int64, error) {
	scopeCtx, cleanup, err := s.withScope(ctx)
	if err != nil {
		return 0, err
	}
	defer cleanup()
	return s.dataStockRepo.GetOrCreate(scopeCtx, name, stockUUID)
}

// ingestFile reads, parses and stores one document, converting every failure
// into a FileResult.
func (s *ingestionService) ingestFile(ctx context.Context, fsys fs.FS, file string, datastockID int64, logger *zap.Logger) (FileResult, *translation.TermSet) {
	timer := metrics.NewTimer()
	result := FileResult{Path: file}
	logger = logger.With(zap.String("file", path.Base(file)))

	finish := func(status FileStatus, err error) {
		result.Status = status
		result.Err = err
		result.Duration = timer.Duration()
		if s.metrics != nil {
			s.metrics.RecordFile(string(status), result.Duration)
		}
	}

	raw, err := fs.ReadFile(fsys, file)
	if err != nil {
		logger.Error("Failed to read document", zap.Error(err))
		finish(FileReadFailed, err)
		return result, nil
	}

	parsed, err := s.parser.Parse(raw)
	if err != nil {
		logger.Error("Failed to parse document", zap.String("error", logging.TruncateString(err.Error(), maxErrorTextLength)))
		finish(FileParseFailed, err)
		return result, nil
	}
	product := parsed.Product
	result.ProcessID = product.ProcessID

	scopeCtx, cleanup, err := s.withScope(ctx)
	if err != nil {
		logger.Error("Failed to acquire database connection", zap.String("error", logging.SanitizeError(err)))
		finish(FileStoreFailed, err)
		return result, parsed.Untranslated
	}
	defer cleanup()

	outcome, err := s.productRepo.Store(scopeCtx, product, datastockID)
	if err != nil {
		logger.Error("Failed to store document",
			zap.String("process_id", product.ProcessID),
			zap.String("error", logging.SanitizeError(err)))
		finish(FileStoreFailed, err)
		return result, parsed.Untranslated
	}

	if outcome == repositories.StoreSkipped {
		logger.Info("Product already present, skipping", zap.String("process_id", product.ProcessID))
		finish(FileSkipped, nil)
	} else {
		logger.Debug("Stored product", zap.String("process_id", product.ProcessID))
		finish(FileStored, nil)
	}
	return result, parsed.Untranslated
}

func (s *ingestionService) recordFolder(status FolderStatus) {
	if s.metrics != nil {
		s.metrics.RecordFolder(string(status))
	}
}

// listDocuments returns the *.json files directly inside dir in name order,
// truncated to maxFiles when it is positive.
func listDocuments(fsys fs.FS, dir string, maxFiles int) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, path.Join(dir, entry.Name()))
		if maxFiles > 0 && len(files) == maxFiles {
			break
		}
	}
	return files, nil
}

// IsContextDone reports whether err came from a cancelled or expired context.
func IsContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
