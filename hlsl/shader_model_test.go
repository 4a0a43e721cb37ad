// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"errors"
	"testing"

	"github.com/gogpu/shade/analysis"
)

func TestShaderModel_String(t *testing.T) {
	tests := []struct {
		sm   ShaderModel
		want string
	}{
		{ShaderModel4_0, "SM 4.0"},
		{ShaderModel5_0, "SM 5.0"},
		{ShaderModel5_1, "SM 5.1"},
		{ShaderModel6_0, "SM 6.0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.sm.String(); got != tt.want {
				t.Errorf("ShaderModel.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShaderModel_Profile(t *testing.T) {
	tests := []struct {
		sm    ShaderModel
		stage analysis.Stage
		want  string
	}{
		{ShaderModel5_1, analysis.StageVertex, "vs_5_1"},
		{ShaderModel5_1, analysis.StagePixel, "ps_5_1"},
		{ShaderModel4_0, analysis.StagePixel, "ps_4_0"},
		{ShaderModel6_0, analysis.StageVertex, "vs_6_0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.sm.Profile(tt.stage); got != tt.want {
				t.Errorf("Profile(%v) = %q, want %q", tt.stage, got, tt.want)
			}
		})
	}
}

func TestShaderModel_SupportsDXIL(t *testing.T) {
	if ShaderModel5_1.SupportsDXIL() {
		t.Error("SM 5.1 should not use DXIL")
	}
	if !ShaderModel6_0.SupportsDXIL() {
		t.Error("SM 6.0 should use DXIL")
	}
}

func TestParseShaderModel(t *testing.T) {
	tests := []struct {
		input   string
		want    ShaderModel
		wantErr bool
	}{
		{"5.1", ShaderModel5_1, false},
		{"5_0", ShaderModel5_0, false},
		{"SM 6.0", ShaderModel6_0, false},
		{"4.0", ShaderModel4_0, false},
		{"3.0", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseShaderModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseShaderModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				var herr *Error
				if !errors.As(err, &herr) || herr.Kind != ErrInvalidShaderModel {
					t.Errorf("error = %v, want InvalidShaderModel", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseShaderModel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
