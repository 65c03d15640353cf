package models

// Indicator is a canonical environmental indicator (e.g. GWP-total).
type Indicator struct {
	Key              string `yaml:"key" json:"indicator_key"`
	Name             string `yaml:"name" json:"name"`
	ShortDescription string `yaml:"short_description" json:"short_description"`
	LongDescription  string `yaml:"long_description" json:"long_description"`
}

// Module is a canonical lifecycle module (e.g. A1 raw material supply).
type Module struct {
	Code             string `yaml:"code" json:"module_code"`
	Name             string `yaml:"name" json:"name"`
	ShortDescription string `yaml:"short_description" json:"short_description"`
	LongDescription  string `yaml:"long_description" json:"long_description"`
}
