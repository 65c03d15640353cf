package epd

import (
	"bytes"
	"encoding/json"

	"github.com/ekaya-inc/epd-normalizer/pkg/jsonutil"
	"github.com/ekaya-inc/epd-normalizer/pkg/models"
)

// The structs below mirror the subset of the ILCD+EPD JSON dialect that is
// normalized. Every level is optional: absent objects decode to zero values.

type document struct {
	ProcessInformation        processInformation        `json:"processInformation"`
	ModellingAndValidation    modellingAndValidation    `json:"modellingAndValidation"`
	AdministrativeInformation administrativeInformation `json:"administrativeInformation"`
	Exchanges                 struct {
		Exchange []exchange `json:"exchange"`
	} `json:"exchanges"`
	LCIAResults struct {
		LCIAResult []lciaResult `json:"LCIAResult"`
	} `json:"LCIAResults"`
}

type processInformation struct {
	DataSetInformation struct {
		UUID json.RawMessage `json:"UUID"`
		Name struct {
			BaseName langList `json:"baseName"`
		} `json:"name"`
		GeneralComment            langList `json:"generalComment"`
		ClassificationInformation struct {
			Classification objectList[classification] `json:"classification"`
		} `json:"classificationInformation"`
	} `json:"dataSetInformation"`
	QuantitativeReference struct {
		ReferenceToReferenceFlow rawList `json:"referenceToReferenceFlow"`
	} `json:"quantitativeReference"`
	Time struct {
		ReferenceYear                     json.RawMessage `json:"referenceYear"`
		DataSetValidUntil                 json.RawMessage `json:"dataSetValidUntil"`
		TimeRepresentativenessDescription langList        `json:"timeRepresentativenessDescription"`
	} `json:"time"`
	Geography struct {
		LocationOfOperationSupplyOrProduction struct {
			Location                  json.RawMessage `json:"location"`
			DescriptionOfRestrictions langList        `json:"descriptionOfRestrictions"`
		} `json:"locationOfOperationSupplyOrProduction"`
	} `json:"geography"`
	Technology struct {
		TechnologyDescriptionAndIncludedProcesses langList `json:"technologyDescriptionAndIncludedProcesses"`
		TechnologicalApplicability                langList `json:"technologicalApplicability"`
	} `json:"technology"`
}

type classification struct {
	Name  string                 `json:"name"`
	Class objectList[classLevel] `json:"class"`
}

type classLevel struct {
	Level   json.RawMessage `json:"level"`
	ClassID json.RawMessage `json:"classId"`
	Value   json.RawMessage `json:"value"`
}

type modellingAndValidation struct {
	LCIMethodAndAllocation struct {
		TypeOfDataSet json.RawMessage `json:"typeOfDataSet"`
		Other         otherBlock      `json:"other"`
	} `json:"LCIMethodAndAllocation"`
	DataSourcesTreatmentAndRepresentativeness struct {
		ReferenceToDataSource refList    `json:"referenceToDataSource"`
		UseAdviceForDataSet   langList   `json:"useAdviceForDataSet"`
		Other                 otherBlock `json:"other"`
	} `json:"dataSourcesTreatmentAndRepresentativeness"`
	Validation struct {
		Review objectList[review] `json:"review"`
	} `json:"validation"`
	ComplianceDeclarations struct {
		Compliance objectList[compliance] `json:"compliance"`
	} `json:"complianceDeclarations"`
}

type review struct {
	ReferenceToNameOfReviewerAndInstitution refList  `json:"referenceToNameOfReviewerAndInstitution"`
	ReviewDetails                           langList `json:"reviewDetails"`
}

type compliance struct {
	ReferenceToComplianceSystem refList         `json:"referenceToComplianceSystem"`
	ApprovalOfOverallCompliance json.RawMessage `json:"approvalOfOverallCompliance"`
}

type administrativeInformation struct {
	DataGenerator struct {
		ReferenceToPersonOrEntityGeneratingTheDataSet refList `json:"referenceToPersonOrEntityGeneratingTheDataSet"`
	} `json:"dataGenerator"`
	DataEntryBy struct {
		TimeStamp                                json.RawMessage `json:"timeStamp"`
		ReferenceToDataSetFormat                 refList         `json:"referenceToDataSetFormat"`
		ReferenceToPersonOrEntityEnteringTheData refList         `json:"referenceToPersonOrEntityEnteringTheData"`
	} `json:"dataEntryBy"`
	PublicationAndOwnership struct {
		DataSetVersion     json.RawMessage `json:"dataSetVersion"`
		LicenseType        json.RawMessage `json:"licenseType"`
		AccessRestrictions langList        `json:"accessRestrictions"`
	} `json:"publicationAndOwnership"`
}

type exchange struct {
	InternalID             json.RawMessage              `json:"dataSetInternalID"`
	ReferenceToFlowDataSet refList                      `json:"referenceToFlowDataSet"`
	ExchangeDirection      json.RawMessage              `json:"exchangeDirection"`
	LegacyDirection        json.RawMessage              `json:"exchange direction"`
	MeanAmount             json.RawMessage              `json:"meanAmount"`
	Other                  otherBlock                   `json:"other"`
	FlowProperties         objectList[flowProperty]     `json:"flowProperties"`
	MaterialProperties     objectList[materialProperty] `json:"materialProperties"`
}

type flowProperty struct {
	Name                  langList        `json:"name"`
	MeanValue             json.RawMessage `json:"meanValue"`
	ReferenceUnit         json.RawMessage `json:"referenceUnit"`
	ReferenceFlowProperty json.RawMessage `json:"referenceFlowProperty"`
}

type materialProperty struct {
	Name            json.RawMessage `json:"name"`
	Value           json.RawMessage `json:"value"`
	Unit            json.RawMessage `json:"unit"`
	UnitDescription json.RawMessage `json:"unitDescription"`
}

type lciaResult struct {
	ReferenceToLCIAMethodDataSet refList         `json:"referenceToLCIAMethodDataSet"`
	MeanAmount                   json.RawMessage `json:"meanAmount"`
	Other                        otherBlock      `json:"other"`
}

// otherBlock is the ILCD "other" extension element. Anything but an object
// decodes to an empty block.
type otherBlock struct {
	Anies rawList `json:"anies"`
}

func (o *otherBlock) UnmarshalJSON(data []byte) error {
	*o = otherBlock{}
	var block struct {
		Anies rawList `json:"anies"`
	}
	if err := json.Unmarshal(data, &block); err == nil {
		o.Anies = block.Anies
	}
	return nil
}

// reference is an ILCD global reference to another dataset.
type reference struct {
	ShortDescription langList `json:"shortDescription"`
}

// LangEntry is one {lang, value} element of a multilingual array.
type LangEntry struct {
	Lang  string          `json:"lang"`
	Value json.RawMessage `json:"value"`
}

// langList decodes a multilingual array. Non-array input decodes to an empty
// list and non-object elements are dropped, so a malformed optional text
// never fails the document.
type langList []LangEntry

func (l *langList) UnmarshalJSON(data []byte) error {
	*l = nil
	for _, item := range decodeArray(data) {
		var entry LangEntry
		if err := json.Unmarshal(item, &entry); err == nil {
			*l = append(*l, entry)
		}
	}
	return nil
}

// refList decodes either a single reference object or an array of them.
// Producers disagree on the cardinality of several reference fields.
type refList []reference

func (r *refList) UnmarshalJSON(data []byte) error {
	*r = nil
	for _, item := range decodeLenientArray(data) {
		var ref reference
		if err := json.Unmarshal(item, &ref); err == nil {
			*r = append(*r, ref)
		}
	}
	return nil
}

func (r refList) first() reference {
	if len(r) == 0 {
		return reference{}
	}
	return r[0]
}

// objectList decodes an array of objects, or a lone object, into T values.
// Elements that do not decode as T are dropped.
type objectList[T any] []T

func (l *objectList[T]) UnmarshalJSON(data []byte) error {
	*l = nil
	for _, item := range decodeLenientArray(data) {
		var v T
		if err := json.Unmarshal(item, &v); err == nil {
			*l = append(*l, v)
		}
	}
	return nil
}

// rawList decodes an array (or a lone value) into its raw elements.
type rawList []json.RawMessage

func (r *rawList) UnmarshalJSON(data []byte) error {
	*r = decodeLenientArray(data)
	return nil
}

// decodeLenientArray returns the elements of a JSON array, a single-element
// slice for any other non-null value, and nil for null or invalid input.
func decodeLenientArray(data []byte) []json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if jsonutil.IsNull(trimmed) {
		return nil
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{json.RawMessage(trimmed)}
	}
	return decodeArray(trimmed)
}

// decodeArray returns the elements of a JSON array and nil for anything else.
func decodeArray(data []byte) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	return items
}

// CollapseMultiLang turns a multilingual array into a language -> text map.
// Entries without a language are keyed "unknown", entries without a value are
// dropped, and later entries for the same language win.
func CollapseMultiLang(entries []LangEntry) models.MultiLang {
	out := make(models.MultiLang, len(entries))
	for _, entry := range entries {
		if jsonutil.IsNull(entry.Value) {
			continue
		}
		lang := entry.Lang
		if lang == "" {
			lang = "unknown"
		}
		out[lang] = jsonutil.FlexibleStringValue(entry.Value)
	}
	return out
}

// firstValue returns the first entry's text regardless of language.
func firstValue(entries langList) *string {
	for _, entry := range entries {
		if !jsonutil.IsNull(entry.Value) {
			v := jsonutil.FlexibleStringValue(entry.Value)
			return &v
		}
	}
	return nil
}
