package epd

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/epd-normalizer/pkg/jsonutil"
	"github.com/ekaya-inc/epd-normalizer/pkg/models"
)

// ExtensionKind identifies which shape an "other.anies" element has.
type ExtensionKind int

const (
	KindNamed ExtensionKind = iota
	KindUnit
	KindModuleAmount
	KindOriginalSource
)

func (k ExtensionKind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindModuleAmount:
		return "module_amount"
	case KindOriginalSource:
		return "original_source"
	default:
		return "named"
	}
}

// Extension names recognized in "other.anies".
const (
	extensionUnitGroup     = "referenceToUnitGroupDataSet"
	extensionOriginalEPD   = "referenceToOriginalEPD"
	extensionSubType       = "subType"
	extensionSafetyMargins = "safetyMargins"
	extensionModuleKey     = "module"
	extensionScenarioKey   = "scenario"
	extensionValueKey      = "value"
	extensionNameKey       = "name"
)

// Extension is one classified "other.anies" element. Only the fields for its
// Kind are populated.
type Extension struct {
	Kind ExtensionKind
	Name string

	Unit         *string             // KindUnit
	ModuleAmount models.ModuleAmount // KindModuleAmount
	URL          *string             // KindOriginalSource
	Value        json.RawMessage     // KindNamed
}

// Extensions is the classified content of one "other" block.
type Extensions []Extension

// ClassifyExtension classifies a single anies element. Precedence is unit
// group name, module key, original EPD name, then any other name. Elements
// that are not objects, or objects matching nothing, report false.
func ClassifyExtension(raw json.RawMessage) (Extension, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Extension{}, false
	}
	name := jsonutil.FlexibleStringValue(fields[extensionNameKey])

	if name == extensionUnitGroup {
		return Extension{Kind: KindUnit, Name: name, Unit: unitFromValue(fields[extensionValueKey])}, true
	}

	if moduleRaw, ok := fields[extensionModuleKey]; ok {
		return Extension{
			Kind: KindModuleAmount,
			Name: name,
			ModuleAmount: models.ModuleAmount{
				Module:   jsonutil.FlexibleStringValue(moduleRaw),
				Scenario: jsonutil.FlexibleStringValue(fields[extensionScenarioKey]),
				Amount:   ParseAmount(fields[extensionValueKey]),
			},
		}, true
	}

	if name == extensionOriginalEPD {
		return Extension{Kind: KindOriginalSource, Name: name, URL: firstResourceURL(fields[extensionValueKey])}, true
	}

	if name != "" {
		return Extension{Kind: KindNamed, Name: name, Value: fields[extensionValueKey]}, true
	}
	return Extension{}, false
}

// ClassifyExtensions classifies every element of an anies list, dropping
// elements that match no kind.
func ClassifyExtensions(anies []json.RawMessage) Extensions {
	out := make(Extensions, 0, len(anies))
	for _, raw := range anies {
		if ext, ok := ClassifyExtension(raw); ok {
			out = append(out, ext)
		}
	}
	return out
}

// Unit returns the unit of the last unit group reference.
func (e Extensions) Unit() *string {
	var unit *string
	for _, ext := range e {
		if ext.Kind == KindUnit {
			unit = ext.Unit
		}
	}
	return unit
}

// ModuleAmounts returns the amounts in first-seen order of their
// (module, scenario) key. A later duplicate replaces the earlier amount.
func (e Extensions) ModuleAmounts() []models.ModuleAmount {
	var out []models.ModuleAmount
	index := make(map[[2]string]int)
	for _, ext := range e {
		if ext.Kind != KindModuleAmount {
			continue
		}
		key := [2]string{ext.ModuleAmount.Module, ext.ModuleAmount.Scenario}
		if i, ok := index[key]; ok {
			out[i] = ext.ModuleAmount
			continue
		}
		index[key] = len(out)
		out = append(out, ext.ModuleAmount)
	}
	return out
}

// OriginalSourceURL returns the first original EPD reference with a URL.
func (e Extensions) OriginalSourceURL() *string {
	for _, ext := range e {
		if ext.Kind == KindOriginalSource && ext.URL != nil {
			return ext.URL
		}
	}
	return nil
}

// Named returns the value of the first named extension called name.
func (e Extensions) Named(name string) (json.RawMessage, bool) {
	for _, ext := range e {
		if ext.Kind == KindNamed && ext.Name == name {
			return ext.Value, true
		}
	}
	return nil, false
}

// ParseAmount parses a decimal amount given as a JSON number or string.
// Absent, empty and unparsable values are nil.
func ParseAmount(raw json.RawMessage) *float64 {
	d, ok := parseDecimal(raw)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return &f
}

// decimalText renders a numeric value as canonical decimal text.
func decimalText(raw json.RawMessage) *string {
	d, ok := parseDecimal(raw)
	if !ok {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.TrimSpace(jsonutil.FlexibleStringValue(raw))
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func unitFromValue(raw json.RawMessage) *string {
	var value struct {
		ShortDescription langList `json:"shortDescription"`
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return firstValue(value.ShortDescription)
}

func firstResourceURL(raw json.RawMessage) *string {
	var value struct {
		ResourceURLs rawList `json:"resourceURLs"`
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	for _, u := range value.ResourceURLs {
		if s := jsonutil.FlexibleString(u); s != nil {
			return s
		}
	}
	return nil
}
