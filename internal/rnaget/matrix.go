package rnaget

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"sort"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/encode-dcc/serverless-rnaget/internal/models"
)

// Matrix is a features by samples expression table
type Matrix struct {
	Samples  []string
	Features []MatrixRow
}

// MatrixRow holds one feature's value per sample, aligned with Matrix.Samples
type MatrixRow struct {
	FeatureID   string
	FeatureName string
	Values      []*float64
}

// NewMatrix pivots feature values into a matrix. Rows are sorted by
// feature id and columns by sample; a sample without a value for a
// feature leaves a nil cell.
func NewMatrix(values []models.ExpressionValue, units models.Units) *Matrix {
	sampleIndex := map[string]int{}
	rows := map[string]*MatrixRow{}
	cells := map[string]map[string]float64{}

	for _, v := range values {
		sample := v.SampleID
		if sample == "" {
			sample = v.ExpressionID
		}
		sampleIndex[sample] = 0

		row, ok := rows[v.FeatureID]
		if !ok {
			row = &MatrixRow{FeatureID: v.FeatureID, FeatureName: v.FeatureName}
			rows[v.FeatureID] = row
			cells[v.FeatureID] = map[string]float64{}
		}
		cells[v.FeatureID][sample] = v.Value(units)
	}

	m := &Matrix{Samples: make([]string, 0, len(sampleIndex))}
	for sample := range sampleIndex {
		m.Samples = append(m.Samples, sample)
	}
	sort.Strings(m.Samples)

	featureIDs := make([]string, 0, len(rows))
	for id := range rows {
		featureIDs = append(featureIDs, id)
	}
	sort.Strings(featureIDs)

	for _, id := range featureIDs {
		row := rows[id]
		row.Values = make([]*float64, len(m.Samples))
		for i, sample := range m.Samples {
			if v, ok := cells[id][sample]; ok {
				row.Values[i] = &v
			}
		}
		m.Features = append(m.Features, *row)
	}
	return m
}

// WriteTSV renders the matrix with a featureID, featureName header
func (m *Matrix) WriteTSV(buf *bytes.Buffer) error {
	w := csv.NewWriter(buf)
	w.Comma = '\t'

	header := append([]string{"featureID", "featureName"}, m.Samples...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range m.Features {
		record := make([]string, 0, len(row.Values)+2)
		record = append(record, row.FeatureID, row.FeatureName)
		for _, v := range row.Values {
			if v == nil {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(*v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func tsvResponse(values []models.ExpressionValue, units models.Units) (events.APIGatewayProxyResponse, error) {
	var buf bytes.Buffer
	if err := NewMatrix(values, units).WriteTSV(&buf); err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to render matrix"), err
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/tab-separated-values"},
		Body:       buf.String(),
	}, nil
}
