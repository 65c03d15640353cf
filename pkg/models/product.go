package models

import (
	"sort"
	"time"
)

// Languages stored as dedicated columns.
const (
	LangEnglish = "en"
	LangGerman  = "de"
)

// MultiLang maps a language code to text. A language without an entry in the
// source document has no key; it is never represented as an empty string.
type MultiLang map[string]string

// Get returns the text for lang, or nil when the document had none.
func (m MultiLang) Get(lang string) *string {
	if v, ok := m[lang]; ok {
		return &v
	}
	return nil
}

// Languages returns the language codes in sorted order.
func (m MultiLang) Languages() []string {
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// DataStock is a named, UUID-identified collection of EPDs.
type DataStock struct {
	ID   int64  `json:"datastock_id"`
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// Product is one normalized EPD process with its whole child record graph.
// ProcessID is "{UUID}_{version}" and is the primary key of the products table.
type Product struct {
	ProcessID string `json:"process_id"`
	UUID      string `json:"uuid"`
	Version   string `json:"version"`

	Name        MultiLang `json:"name"`
	Description MultiLang `json:"description"`

	CategoryLevel1 *string `json:"category_level_1,omitempty"`
	CategoryLevel2 *string `json:"category_level_2,omitempty"`
	CategoryLevel3 *string `json:"category_level_3,omitempty"`

	ReferenceYear          *string   `json:"reference_year,omitempty"`
	ValidUntil             *string   `json:"valid_until,omitempty"`
	TimeRepresentativeness MultiLang `json:"time_representativeness"`

	SafetyMargin      *string   `json:"safety_margin,omitempty"`
	SafetyDescription MultiLang `json:"safety_description"`

	GeoLocation    *string   `json:"geo_location,omitempty"`
	GeoDescription MultiLang `json:"geo_description"`

	TechnologyDescription MultiLang `json:"technology_description"`
	TechApplicability     MultiLang `json:"tech_applicability"`

	DatasetType    *string   `json:"dataset_type,omitempty"`
	DatasetSubtype *string   `json:"dataset_subtype,omitempty"`
	Sources        string    `json:"sources"`
	UseAdvice      MultiLang `json:"use_advice"`

	Generator    MultiLang  `json:"generator"`
	EntryBy      MultiLang  `json:"entry_by"`
	AdminVersion *string    `json:"admin_version,omitempty"`
	LicenseType  *string    `json:"license_type,omitempty"`
	Access       MultiLang  `json:"access"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Formats      []string   `json:"formats"`

	OriginalEPDURL *string `json:"original_epd_url,omitempty"`

	Classifications    []Classification   `json:"classifications"`
	Exchanges          []Exchange         `json:"exchanges"`
	LCIAResults        []LCIAResult       `json:"lcia_results"`
	Reviews            []Review           `json:"reviews"`
	Compliances        []Compliance       `json:"compliances"`
	FlowProperties     []FlowProperty     `json:"flow_properties"`
	MaterialProperties []MaterialProperty `json:"material_properties"`
}

// Classification is one class entry of a named classification system.
type Classification struct {
	Name    string  `json:"name"`
	Level   string  `json:"level"`
	ClassID string  `json:"class_id"`
	Value   *string `json:"classification,omitempty"`
}

// ModuleAmount is a quantity reported for one lifecycle module and scenario.
// Amount is nil when the source value was absent or not a decimal.
type ModuleAmount struct {
	Module   string   `json:"module"`
	Scenario string   `json:"scenario"`
	Amount   *float64 `json:"amount,omitempty"`
}

// Exchange is an input or output flow of the process.
type Exchange struct {
	InternalID    string         `json:"data_set_internal_id"`
	Flow          MultiLang      `json:"flow"`
	IndicatorKey  *string        `json:"indicator_key,omitempty"`
	Direction     *string        `json:"direction,omitempty"`
	MeanAmount    *float64       `json:"mean_amount,omitempty"`
	Unit          *string        `json:"unit,omitempty"`
	ModuleAmounts []ModuleAmount `json:"module_amounts"`
}

// LCIAResult is a life-cycle impact assessment method result.
type LCIAResult struct {
	Method        MultiLang      `json:"method"`
	IndicatorKey  *string        `json:"indicator_key,omitempty"`
	MeanAmount    *float64       `json:"mean_amount,omitempty"`
	Unit          *string        `json:"unit,omitempty"`
	ModuleAmounts []ModuleAmount `json:"module_amounts"`
}

// Review attributes the dataset review to one reviewer.
type Review struct {
	Reviewer string    `json:"reviewer"`
	Details  MultiLang `json:"details"`
}

// Compliance names a compliance system the dataset declares conformity with.
type Compliance struct {
	System   MultiLang `json:"system"`
	Approval *string   `json:"approval,omitempty"`
}

// FlowProperty describes a physical property of the reference flow.
type FlowProperty struct {
	NameEN      *string `json:"name_en,omitempty"`
	NameDE      *string `json:"name_de,omitempty"`
	MeanValue   *string `json:"mean_value,omitempty"`
	Unit        *string `json:"unit,omitempty"`
	IsReference bool    `json:"is_reference"`
}

// MaterialProperty is a named material property of the reference flow.
// Value holds the decimal text of the source value, nil when not numeric.
type MaterialProperty struct {
	PropertyID   string  `json:"property_id"`
	PropertyName *string `json:"property_name,omitempty"`
	Value        *string `json:"value,omitempty"`
	Units        *string `json:"units,omitempty"`
	Description  *string `json:"description,omitempty"`
}
