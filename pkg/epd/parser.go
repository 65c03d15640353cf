package epd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/epd-normalizer/pkg/jsonutil"
	"github.com/ekaya-inc/epd-normalizer/pkg/models"
	"github.com/ekaya-inc/epd-normalizer/pkg/translation"
)

// CategorySystem is the classification system projected onto the category path.
const CategorySystem = "oekobau.dat"

// Translator substitutes German category terms with English ones.
// ok is false when the term is unknown and was returned unchanged.
type Translator interface {
	Translate(text string) (translated string, ok bool)
}

// IndicatorResolver maps free-text flow or method names to an indicator key.
type IndicatorResolver interface {
	Resolve(text models.MultiLang) *string
}

// Result is the outcome of parsing one document.
type Result struct {
	Product      *models.Product
	Untranslated *translation.TermSet
}

// Parser turns raw EPD JSON into a models.Product. It performs no I/O and is
// safe for concurrent use when its collaborators are.
type Parser struct {
	translator Translator
	indicators IndicatorResolver
	logger     *zap.Logger
}

func NewParser(translator Translator, indicators IndicatorResolver, logger *zap.Logger) *Parser {
	return &Parser{
		translator: translator,
		indicators: indicators,
		logger:     logger.Named("epd-parser"),
	}
}

// Parse decodes and normalizes one document. Structural problems are returned
// as errors wrapping apperrors.ErrInvalidDocument; optional data that is
// missing or malformed becomes nil or empty.
func (p *Parser) Parse(raw []byte) (*Result, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	info := doc.ProcessInformation
	admin := doc.AdministrativeInformation
	mv := doc.ModellingAndValidation

	uuid := strings.TrimSpace(jsonutil.FlexibleStringValue(info.DataSetInformation.UUID))
	if uuid == "" {
		return nil, ErrMissingUUID
	}
	version := strings.TrimSpace(jsonutil.FlexibleStringValue(admin.PublicationAndOwnership.DataSetVersion))
	if version == "" {
		return nil, ErrMissingVersion
	}

	refExchange, err := findReferenceExchange(info.QuantitativeReference.ReferenceToReferenceFlow, doc.Exchanges.Exchange)
	if err != nil {
		return nil, err
	}

	untranslated := translation.NewTermSet()
	product := &models.Product{
		ProcessID:   uuid + "_" + version,
		UUID:        uuid,
		Version:     version,
		Name:        CollapseMultiLang(info.DataSetInformation.Name.BaseName),
		Description: CollapseMultiLang(info.DataSetInformation.GeneralComment),

		ReferenceYear:          jsonutil.FlexibleString(info.Time.ReferenceYear),
		ValidUntil:             jsonutil.FlexibleString(info.Time.DataSetValidUntil),
		TimeRepresentativeness: CollapseMultiLang(info.Time.TimeRepresentativenessDescription),
		SafetyDescription:      models.MultiLang{},

		GeoLocation:    jsonutil.FlexibleString(info.Geography.LocationOfOperationSupplyOrProduction.Location),
		GeoDescription: CollapseMultiLang(info.Geography.LocationOfOperationSupplyOrProduction.DescriptionOfRestrictions),

		TechnologyDescription: CollapseMultiLang(info.Technology.TechnologyDescriptionAndIncludedProcesses),
		TechApplicability:     CollapseMultiLang(info.Technology.TechnologicalApplicability),

		DatasetType: jsonutil.FlexibleString(mv.LCIMethodAndAllocation.TypeOfDataSet),
		Sources:     joinFirstValues(mv.DataSourcesTreatmentAndRepresentativeness.ReferenceToDataSource),
		UseAdvice:   CollapseMultiLang(mv.DataSourcesTreatmentAndRepresentativeness.UseAdviceForDataSet),

		Generator:    CollapseMultiLang(admin.DataGenerator.ReferenceToPersonOrEntityGeneratingTheDataSet.first().ShortDescription),
		EntryBy:      CollapseMultiLang(admin.DataEntryBy.ReferenceToPersonOrEntityEnteringTheData.first().ShortDescription),
		AdminVersion: jsonutil.FlexibleString(admin.PublicationAndOwnership.DataSetVersion),
		LicenseType:  jsonutil.FlexibleString(admin.PublicationAndOwnership.LicenseType),
		Access:       CollapseMultiLang(admin.PublicationAndOwnership.AccessRestrictions),
		Timestamp:    ParseTimestamp(admin.DataEntryBy.TimeStamp),
		Formats:      firstValues(admin.DataEntryBy.ReferenceToDataSetFormat),
	}

	p.projectCategories(product, info.DataSetInformation.ClassificationInformation.Classification, untranslated)
	p.applyMethodExtensions(product, ClassifyExtensions(mv.LCIMethodAndAllocation.Other.Anies))
	p.applySourceExtensions(product, ClassifyExtensions(mv.DataSourcesTreatmentAndRepresentativeness.Other.Anies))

	for _, ex := range doc.Exchanges.Exchange {
		product.Exchanges = append(product.Exchanges, p.buildExchange(ex))
	}
	for _, lr := range doc.LCIAResults.LCIAResult {
		product.LCIAResults = append(product.LCIAResults, p.buildLCIAResult(lr))
	}
	for _, rv := range mv.Validation.Review {
		details := CollapseMultiLang(rv.ReviewDetails)
		for _, reviewer := range firstValues(rv.ReferenceToNameOfReviewerAndInstitution) {
			product.Reviews = append(product.Reviews, models.Review{Reviewer: reviewer, Details: details})
		}
	}
	for _, c := range mv.ComplianceDeclarations.Compliance {
		product.Compliances = append(product.Compliances, models.Compliance{
			System:   CollapseMultiLang(c.ReferenceToComplianceSystem.first().ShortDescription),
			Approval: jsonutil.FlexibleString(c.ApprovalOfOverallCompliance),
		})
	}

	product.FlowProperties = buildFlowProperties(refExchange.FlowProperties)
	product.MaterialProperties = buildMaterialProperties(refExchange.MaterialProperties)

	return &Result{Product: product, Untranslated: untranslated}, nil
}

// findReferenceExchange returns the single exchange whose internal ID is the
// first reference flow ID.
func findReferenceExchange(refs rawList, exchanges []exchange) (exchange, error) {
	if len(refs) == 0 || jsonutil.IsNull(refs[0]) {
		return exchange{}, ErrMissingReferenceFlow
	}
	refID := strings.TrimSpace(jsonutil.FlexibleStringValue(refs[0]))

	var (
		found   exchange
		matches int
	)
	for _, ex := range exchanges {
		if strings.TrimSpace(jsonutil.FlexibleStringValue(ex.InternalID)) == refID {
			found = ex
			matches++
		}
	}
	switch {
	case matches == 0:
		return exchange{}, fmt.Errorf("%w (dataSetInternalID %s)", ErrReferenceFlowNotFound, refID)
	case matches > 1:
		return exchange{}, fmt.Errorf("%w (dataSetInternalID %s, %d matches)", ErrAmbiguousReferenceFlow, refID, matches)
	}
	return found, nil
}

// projectCategories fills the category path from the oekobau.dat
// classification. The last class per level wins.
func (p *Parser) projectCategories(product *models.Product, classifications []classification, untranslated *translation.TermSet) {
	for _, cl := range classifications {
		for _, class := range cl.Class {
			value := jsonutil.FlexibleString(class.Value)
			product.Classifications = append(product.Classifications, models.Classification{
				Name:    cl.Name,
				Level:   jsonutil.FlexibleStringValue(class.Level),
				ClassID: jsonutil.FlexibleStringValue(class.ClassID),
				Value:   value,
			})

			if !strings.EqualFold(strings.TrimSpace(cl.Name), CategorySystem) {
				continue
			}
			level, err := strconv.Atoi(strings.TrimSpace(jsonutil.FlexibleStringValue(class.Level)))
			if err != nil {
				p.logger.Debug("Ignoring classification with unparsable level",
					zap.String("level", jsonutil.FlexibleStringValue(class.Level)))
				continue
			}
			switch level {
			case 0:
				product.CategoryLevel1 = p.translate(value, untranslated)
			case 1:
				product.CategoryLevel2 = p.translate(value, untranslated)
			case 2:
				product.CategoryLevel3 = p.translate(value, untranslated)
			}
		}
	}
}

func (p *Parser) translate(value *string, untranslated *translation.TermSet) *string {
	if value == nil {
		return nil
	}
	out, ok := p.translator.Translate(*value)
	if !ok {
		untranslated.Add(*value)
	}
	return &out
}

func (p *Parser) applyMethodExtensions(product *models.Product, exts Extensions) {
	if raw, ok := exts.Named(extensionSubType); ok {
		product.DatasetSubtype = jsonutil.FlexibleString(raw)
	}
	if raw, ok := exts.Named(extensionSafetyMargins); ok {
		var margins struct {
			Margins     json.RawMessage `json:"margins"`
			Description langList        `json:"description"`
		}
		if err := json.Unmarshal(raw, &margins); err == nil {
			product.SafetyMargin = jsonutil.FlexibleString(margins.Margins)
			product.SafetyDescription = CollapseMultiLang(margins.Description)
		}
	}
}

func (p *Parser) applySourceExtensions(product *models.Product, exts Extensions) {
	product.OriginalEPDURL = exts.OriginalSourceURL()
}

func (p *Parser) buildExchange(ex exchange) models.Exchange {
	flow := CollapseMultiLang(ex.ReferenceToFlowDataSet.first().ShortDescription)
	direction := jsonutil.FlexibleString(ex.ExchangeDirection)
	if direction == nil {
		direction = jsonutil.FlexibleString(ex.LegacyDirection)
	}
	exts := ClassifyExtensions(ex.Other.Anies)

	key := p.indicators.Resolve(flow)
	if key == nil && len(flow) > 0 {
		p.logger.Debug("No indicator matched exchange flow", zap.Strings("languages", flow.Languages()))
	}
	return models.Exchange{
		InternalID:    jsonutil.FlexibleStringValue(ex.InternalID),
		Flow:          flow,
		IndicatorKey:  key,
		Direction:     direction,
		MeanAmount:    ParseAmount(ex.MeanAmount),
		Unit:          exts.Unit(),
		ModuleAmounts: exts.ModuleAmounts(),
	}
}

func (p *Parser) buildLCIAResult(lr lciaResult) models.LCIAResult {
	method := CollapseMultiLang(lr.ReferenceToLCIAMethodDataSet.first().ShortDescription)
	exts := ClassifyExtensions(lr.Other.Anies)

	key := p.indicators.Resolve(method)
	if key == nil && len(method) > 0 {
		p.logger.Debug("No indicator matched LCIA method", zap.Strings("languages", method.Languages()))
	}
	return models.LCIAResult{
		Method:        method,
		IndicatorKey:  key,
		MeanAmount:    ParseAmount(lr.MeanAmount),
		Unit:          exts.Unit(),
		ModuleAmounts: exts.ModuleAmounts(),
	}
}

func buildFlowProperties(props []flowProperty) []models.FlowProperty {
	out := make([]models.FlowProperty, 0, len(props))
	for _, fp := range props {
		name := CollapseMultiLang(fp.Name)
		out = append(out, models.FlowProperty{
			NameEN:      name.Get(models.LangEnglish),
			NameDE:      name.Get(models.LangGerman),
			MeanValue:   jsonutil.FlexibleString(fp.MeanValue),
			Unit:        jsonutil.FlexibleString(fp.ReferenceUnit),
			IsReference: jsonutil.FlexibleBool(fp.ReferenceFlowProperty),
		})
	}
	return out
}

// buildMaterialProperties keys properties by name: a later duplicate replaces
// the earlier one in its first-seen position. Unnamed entries are dropped.
func buildMaterialProperties(props []materialProperty) []models.MaterialProperty {
	var out []models.MaterialProperty
	index := make(map[string]int)
	for _, mp := range props {
		name := strings.TrimSpace(jsonutil.FlexibleStringValue(mp.Name))
		if name == "" {
			continue
		}
		propertyName := name
		prop := models.MaterialProperty{
			PropertyID:   name,
			PropertyName: &propertyName,
			Value:        decimalText(mp.Value),
			Units:        jsonutil.FlexibleString(mp.Unit),
			Description:  jsonutil.FlexibleString(mp.UnitDescription),
		}
		if i, ok := index[name]; ok {
			out[i] = prop
			continue
		}
		index[name] = len(out)
		out = append(out, prop)
	}
	return out
}

// PostgreSQL timestamptz bounds, in Unix milliseconds. The upper bound is exclusive.
var (
	minTimestampMillis = decimal.NewFromInt(time.Date(-4713, time.November, 24, 0, 0, 0, 0, time.UTC).UnixMilli())
	maxTimestampMillis = decimal.NewFromInt(time.Date(294277, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
)

// ParseTimestamp converts Unix milliseconds, given as a number or numeric
// string, to a UTC instant. Null, zero, empty and non-numeric values are nil,
// as are values PostgreSQL cannot store.
func ParseTimestamp(raw json.RawMessage) *time.Time {
	d, ok := parseDecimal(raw)
	if !ok || d.IsZero() {
		return nil
	}
	if d.LessThan(minTimestampMillis) || !d.LessThan(maxTimestampMillis) {
		return nil
	}
	t := time.UnixMilli(d.IntPart()).UTC()
	return &t
}

func firstValues(refs refList) []string {
	var out []string
	for _, ref := range refs {
		if v := firstValue(ref.ShortDescription); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func joinFirstValues(refs refList) string {
	return strings.Join(firstValues(refs), ", ")
}
