package models

import "testing"

func TestStage_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		want  bool
	}{
		{"dev is valid", StageDev, true},
		{"stage is valid", StageStage, true},
		{"prod is valid", StageProd, true},
		{"invalid stage", Stage("invalid"), false},
		{"empty stage", Stage(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stage.IsValid(); got != tt.want {
				t.Errorf("Stage.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat_IsValid(t *testing.T) {
	tests := []struct {
		format Format
		want   bool
	}{
		{FormatTSV, true},
		{Format("loom"), false},
		{Format(""), false},
		{Format("TSV"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := tt.format.IsValid(); got != tt.want {
				t.Errorf("Format(%q).IsValid() = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Units
		wantOK bool
	}{
		{"empty defaults to TPM", "", UnitsTPM, true},
		{"TPM", "TPM", UnitsTPM, true},
		{"fpkm lowercase", "fpkm", UnitsFPKM, true},
		{"unknown", "RPKM", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseUnits(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseUnits(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExpressionValue_Value(t *testing.T) {
	v := ExpressionValue{TPM: 1.5, FPKM: 3.25}

	if got := v.Value(UnitsTPM); got != 1.5 {
		t.Errorf("Value(TPM) = %v, want 1.5", got)
	}
	if got := v.Value(UnitsFPKM); got != 3.25 {
		t.Errorf("Value(FPKM) = %v, want 3.25", got)
	}
}
