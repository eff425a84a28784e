package models

import "strings"

// Format is the file format an expression matrix is rendered in
type Format string

const (
	// FormatTSV is a tab separated matrix, features by samples
	FormatTSV Format = "tsv"
)

// SupportedFormats lists the formats served by the bytes endpoints
var SupportedFormats = []Format{FormatTSV}

// IsValid checks if the format is supported
func (f Format) IsValid() bool {
	for _, supported := range SupportedFormats {
		if f == supported {
			return true
		}
	}
	return false
}

// String returns the string representation of the format
func (f Format) String() string {
	return string(f)
}

// Units is the quantification unit of expression values
type Units string

const (
	// UnitsTPM is transcripts per million
	UnitsTPM Units = "TPM"
	// UnitsFPKM is fragments per kilobase of transcript per million mapped reads
	UnitsFPKM Units = "FPKM"
)

// SupportedUnits lists the units an expression matrix can be rendered in
var SupportedUnits = []Units{UnitsTPM, UnitsFPKM}

// ParseUnits resolves a units query value. Empty means TPM.
func ParseUnits(s string) (Units, bool) {
	if strings.TrimSpace(s) == "" {
		return UnitsTPM, true
	}
	for _, u := range SupportedUnits {
		if strings.EqualFold(s, string(u)) {
			return u, true
		}
	}
	return "", false
}

// String returns the string representation of the units
func (u Units) String() string {
	return string(u)
}

// Project is a top level grouping of studies
type Project struct {
	ID          string   `json:"id"`
	Version     string   `json:"version"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Study is a set of expression matrices produced by one experiment series
type Study struct {
	ID              string   `json:"id"`
	Version         string   `json:"version"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	ParentProjectID string   `json:"parentProjectID"`
	Tags            []string `json:"tags,omitempty"`
	Genome          string   `json:"genome,omitempty"`
}

// Expression describes one quantified expression matrix (a single
// quantification file)
type Expression struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	StudyID   string `json:"studyID"`
	ProjectID string `json:"projectID"`
	SampleID  string `json:"sampleID"`
	Assay     string `json:"assay,omitempty"`
	Biosample string `json:"biosample,omitempty"`
}

// ExpressionValue is a single feature quantification inside an expression
type ExpressionValue struct {
	ExpressionID string  `json:"expressionID"`
	StudyID      string  `json:"studyID"`
	ProjectID    string  `json:"projectID"`
	SampleID     string  `json:"sampleID"`
	FeatureID    string  `json:"featureID"`
	FeatureName  string  `json:"featureName"`
	TPM          float64 `json:"tpm"`
	FPKM         float64 `json:"fpkm"`
}

// Value returns the quantification in the requested units
func (v ExpressionValue) Value(units Units) float64 {
	if units == UnitsFPKM {
		return v.FPKM
	}
	return v.TPM
}

// Ticket points a client at the bytes of an expression matrix
type Ticket struct {
	ID       string            `json:"id"`
	Version  string            `json:"version,omitempty"`
	URL      string            `json:"url"`
	Units    Units             `json:"units"`
	FileType Format            `json:"fileType"`
	StudyID  string            `json:"studyID,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Filter describes a query parameter accepted by a search endpoint
type Filter struct {
	Filter      string `json:"filter"`
	FieldType   string `json:"fieldType"`
	Description string `json:"description"`
}

// ServiceType identifies the GA4GH API implemented by a service
type ServiceType struct {
	Group    string `json:"group"`
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

// Organization operates a service
type Organization struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ServiceInfo is the GA4GH service-info document
type ServiceInfo struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         ServiceType  `json:"type"`
	Description  string       `json:"description"`
	Organization Organization `json:"organization"`
	ContactURL   string       `json:"contactUrl,omitempty"`
	Environment  string       `json:"environment"`
	Version      string       `json:"version"`
	Supported    Supported    `json:"supported"`
}

// Supported lists the optional RNAget features a service answers
type Supported struct {
	Projects    bool `json:"projects"`
	Studies     bool `json:"studies"`
	Expressions bool `json:"expressions"`
	Continuous  bool `json:"continuous"`
}
