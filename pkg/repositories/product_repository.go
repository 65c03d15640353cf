package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/epd-normalizer/pkg/database"
	"github.com/ekaya-inc/epd-normalizer/pkg/models"
)

// StoreOutcome reports what Store did with a product.
type StoreOutcome int

const (
	// StoreInserted means the product and all its child records were written.
	StoreInserted StoreOutcome = iota
	// StoreSkipped means a product with the same process_id already existed.
	StoreSkipped
)

func (o StoreOutcome) String() string {
	if o == StoreSkipped {
		return "skipped"
	}
	return "inserted"
}

// ChildCounts is the number of rows each child table holds for one product.
type ChildCounts struct {
	Classifications       int
	Exchanges             int
	ExchangeModuleAmounts int
	LCIAResults           int
	LCIAModuleAmounts     int
	Reviews               int
	Compliances           int
	FlowProperties        int
	MaterialProperties    int
}

// ProductRepository persists normalized products. Products are immutable:
// a stored product is never updated or merged.
type ProductRepository interface {
	// Store writes the product and its record graph in one transaction.
	// Nothing is written when the process_id is already present.
	Store(ctx context.Context, product *models.Product, datastockID int64) (StoreOutcome, error)
	Exists(ctx context.Context, processID string) (bool, error)
	CountChildren(ctx context.Context, processID string) (*ChildCounts, error)
}

type productRepository struct{}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository() ProductRepository {
	return &productRepository{}
}

var _ ProductRepository = (*productRepository)(nil)

func (r *productRepository) Store(ctx context.Context, p *models.Product, datastockID int64) (StoreOutcome, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return StoreSkipped, fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return StoreSkipped, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM products WHERE process_id = $1)", p.ProcessID).Scan(&exists); err != nil {
		return StoreSkipped, fmt.Errorf("failed to check existing product: %w", err)
	}
	if exists {
		return StoreSkipped, nil
	}

	inserted, err := insertProduct(ctx, tx, p, datastockID)
	if err != nil {
		return StoreSkipped, err
	}
	if !inserted {
		// Lost a race with another writer between the check and the insert.
		return StoreSkipped, nil
	}

	if err := insertExchanges(ctx, tx, p.ProcessID, p.Exchanges); err != nil {
		return StoreSkipped, err
	}
	if err := insertLCIAResults(ctx, tx, p.ProcessID, p.LCIAResults); err != nil {
		return StoreSkipped, err
	}
	if err := insertFlatChildren(ctx, tx, p); err != nil {
		return StoreSkipped, err
	}

	if err := tx.Commit(ctx); err != nil {
		return StoreSkipped, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return StoreInserted, nil
}

func insertProduct(ctx context.Context, tx pgx.Tx, p *models.Product, datastockID int64) (bool, error) {
	query := `
		INSERT INTO products (
			process_id, uuid, version, name_en, name_de,
			category_level_1, category_level_2, category_level_3,
			description_en, description_de, reference_year, valid_until,
			time_repr_en, time_repr_de, safety_margin, safety_descr_en, safety_descr_de,
			geo_location, geo_descr_en, geo_descr_de,
			tech_descr_en, tech_descr_de, tech_applic_en, tech_applic_de,
			dataset_type, dataset_subtype, sources, use_advice_en, use_advice_de,
			generator_en, generator_de, entry_by_en, entry_by_de,
			admin_version, license_type, access_en, access_de,
			timestamp, formats, original_epd_url, datastock_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41
		)
		ON CONFLICT (process_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		p.ProcessID, p.UUID, p.Version,
		p.Name.Get(models.LangEnglish), p.Name.Get(models.LangGerman),
		p.CategoryLevel1, p.CategoryLevel2, p.CategoryLevel3,
		p.Description.Get(models.LangEnglish), p.Description.Get(models.LangGerman),
		p.ReferenceYear, p.ValidUntil,
		p.TimeRepresentativeness.Get(models.LangEnglish), p.TimeRepresentativeness.Get(models.LangGerman),
		p.SafetyMargin,
		p.SafetyDescription.Get(models.LangEnglish), p.SafetyDescription.Get(models.LangGerman),
		p.GeoLocation,
		p.GeoDescription.Get(models.LangEnglish), p.GeoDescription.Get(models.LangGerman),
		p.TechnologyDescription.Get(models.LangEnglish), p.TechnologyDescription.Get(models.LangGerman),
		p.TechApplicability.Get(models.LangEnglish), p.TechApplicability.Get(models.LangGerman),
		p.DatasetType, p.DatasetSubtype, nullString(p.Sources),
		p.UseAdvice.Get(models.LangEnglish), p.UseAdvice.Get(models.LangGerman),
		p.Generator.Get(models.LangEnglish), p.Generator.Get(models.LangGerman),
		p.EntryBy.Get(models.LangEnglish), p.EntryBy.Get(models.LangGerman),
		p.AdminVersion, p.LicenseType,
		p.Access.Get(models.LangEnglish), p.Access.Get(models.LangGerman),
		p.Timestamp, nullString(strings.Join(p.Formats, ", ")), p.OriginalEPDURL,
		datastockID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert product %s: %w", p.ProcessID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func insertExchanges(ctx context.Context, tx pgx.Tx, processID string, exchanges []models.Exchange) error {
	batch := &pgx.Batch{}
	for _, ex := range exchanges {
		var exchangeID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO exchanges (process_id, internal_id, flow_en, flow_de, indicator_key, direction, meanamount, unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING exchange_id`,
			processID, nullString(ex.InternalID),
			ex.Flow.Get(models.LangEnglish), ex.Flow.Get(models.LangGerman),
			ex.IndicatorKey, ex.Direction, ex.MeanAmount, ex.Unit,
		).Scan(&exchangeID)
		if err != nil {
			return fmt.Errorf("failed to insert exchange: %w", err)
		}
		for _, ma := range ex.ModuleAmounts {
			batch.Queue(
				"INSERT INTO exchange_moduleamounts (exchange_id, module, scenario, amount) VALUES ($1, $2, $3, $4)",
				exchangeID, ma.Module, ma.Scenario, ma.Amount,
			)
		}
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to insert exchange module amounts: %w", err)
	}
	return nil
}

func insertLCIAResults(ctx context.Context, tx pgx.Tx, processID string, results []models.LCIAResult) error {
	batch := &pgx.Batch{}
	for _, lr := range results {
		var lciaID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO lcia_results (process_id, method_en, method_de, indicator_key, meanamount, unit)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING lcia_id`,
			processID,
			lr.Method.Get(models.LangEnglish), lr.Method.Get(models.LangGerman),
			lr.IndicatorKey, lr.MeanAmount, lr.Unit,
		).Scan(&lciaID)
		if err != nil {
			return fmt.Errorf("failed to insert LCIA result: %w", err)
		}
		for _, ma := range lr.ModuleAmounts {
			batch.Queue(
				"INSERT INTO lcia_moduleamounts (lcia_id, module, scenario, amount) VALUES ($1, $2, $3, $4)",
				lciaID, ma.Module, ma.Scenario, ma.Amount,
			)
		}
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to insert LCIA module amounts: %w", err)
	}
	return nil
}

// insertFlatChildren writes the child tables that need no generated keys.
func insertFlatChildren(ctx context.Context, tx pgx.Tx, p *models.Product) error {
	batch := &pgx.Batch{}
	for _, c := range p.Classifications {
		batch.Queue(
			"INSERT INTO classifications (process_id, name, level, classid, classification) VALUES ($1, $2, $3, $4, $5)",
			p.ProcessID, c.Name, c.Level, c.ClassID, c.Value,
		)
	}
	for _, rv := range p.Reviews {
		batch.Queue(
			"INSERT INTO reviews (process_id, reviewer, detail_en, detail_de) VALUES ($1, $2, $3, $4)",
			p.ProcessID, rv.Reviewer, rv.Details.Get(models.LangEnglish), rv.Details.Get(models.LangGerman),
		)
	}
	for _, c := range p.Compliances {
		batch.Queue(
			"INSERT INTO compliances (process_id, system_en, system_de, approval) VALUES ($1, $2, $3, $4)",
			p.ProcessID, c.System.Get(models.LangEnglish), c.System.Get(models.LangGerman), c.Approval,
		)
	}
	for _, fp := range p.FlowProperties {
		batch.Queue(
			"INSERT INTO flow_properties (process_id, name_en, name_de, meanamount, unit, is_reference) VALUES ($1, $2, $3, $4, $5, $6)",
			p.ProcessID, fp.NameEN, fp.NameDE, fp.MeanValue, fp.Unit, fp.IsReference,
		)
	}
	for _, mp := range p.MaterialProperties {
		batch.Queue(
			"INSERT INTO material_properties (process_id, property_id, property_name, value, units, description) VALUES ($1, $2, $3, $4, $5, $6)",
			p.ProcessID, mp.PropertyID, mp.PropertyName, mp.Value, mp.Units, mp.Description,
		)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to insert child records of %s: %w", p.ProcessID, err)
	}
	return nil
}

// sendBatch runs every queued statement and returns the first error.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *productRepository) Exists(ctx context.Context, processID string) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	var exists bool
	err := scope.Conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM products WHERE process_id = $1)", processID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product: %w", err)
	}
	return exists, nil
}

func (r *productRepository) CountChildren(ctx context.Context, processID string) (*ChildCounts, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM classifications WHERE process_id = $1),
			(SELECT COUNT(*) FROM exchanges WHERE process_id = $1),
			(SELECT COUNT(*) FROM exchange_moduleamounts m
				JOIN exchanges e ON e.exchange_id = m.exchange_id WHERE e.process_id = $1),
			(SELECT COUNT(*) FROM lcia_results WHERE process_id = $1),
			(SELECT COUNT(*) FROM lcia_moduleamounts m
				JOIN lcia_results l ON l.lcia_id = m.lcia_id WHERE l.process_id = $1),
			(SELECT COUNT(*) FROM reviews WHERE process_id = $1),
			(SELECT COUNT(*) FROM compliances WHERE process_id = $1),
			(SELECT COUNT(*) FROM flow_properties WHERE process_id = $1),
			(SELECT COUNT(*) FROM material_properties WHERE process_id = $1)`

	var c ChildCounts
	err := scope.Conn.QueryRow(ctx, query, processID).Scan(
		&c.Classifications,
		&c.Exchanges,
		&c.ExchangeModuleAmounts,
		&c.LCIAResults,
		&c.LCIAModuleAmounts,
		&c.Reviews,
		&c.Compliances,
		&c.FlowProperties,
		&c.MaterialProperties,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count child records: %w", err)
	}
	return &c, nil
}

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
