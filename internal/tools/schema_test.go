package tools

import (
	"errors"
	"testing"
)

func TestSchemaValidate(t *testing.T) {
	schema := Schema{
		Properties: map[string]Property{
			"url":    {Type: "string"},
			"method": {Type: "string", Enum: []string{"GET", "POST"}},
			"limit":  {Type: "integer"},
			"follow": {Type: "boolean"},
			"body":   {Type: "object"},
		},
		Required: []string{"url", "method"},
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantField string // "" means valid
	}{
		{
			name: "valid minimal",
			args: map[string]any{"url": "https://x", "method": "GET"},
		},
		{
			name: "valid full",
			args: map[string]any{
				"url": "https://x", "method": "POST",
				"limit": 10.0, "follow": true,
				"body": map[string]any{"k": "v"},
			},
		},
		{
			name:      "missing url",
			args:      map[string]any{"method": "GET"},
			wantField: "url",
		},
		{
			name:      "nil required value",
			args:      map[string]any{"url": nil, "method": "GET"},
			wantField: "url",
		},
		{
			name:      "url wrong type",
			args:      map[string]any{"url": 5.0, "method": "GET"},
			wantField: "url",
		},
		{
			name:      "method outside enum",
			args:      map[string]any{"url": "https://x", "method": "DELETE"},
			wantField: "method",
		},
		{
			name:      "fractional integer",
			args:      map[string]any{"url": "https://x", "method": "GET", "limit": 1.5},
			wantField: "limit",
		},
		{
			name: "whole float accepted as integer",
			args: map[string]any{"url": "https://x", "method": "GET", "limit": 3.0},
		},
		{
			name:      "boolean wrong type",
			args:      map[string]any{"url": "https://x", "method": "GET", "follow": "yes"},
			wantField: "follow",
		},
		{
			name: "extra undeclared field ignored",
			args: map[string]any{"url": "https://x", "method": "GET", "padding": 123},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate("make_http_request", tt.args)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate: %v, want nil", err)
				}
				return
			}
			var iae *InvalidArgumentsError
			if !errors.As(err, &iae) {
				t.Fatalf("err = %v, want *InvalidArgumentsError", err)
			}
			if iae.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", iae.Field, tt.wantField)
			}
		})
	}
}

func TestSchemaParameters(t *testing.T) {
	schema := Schema{
		Properties: map[string]Property{
			"method": {Type: "string", Description: "HTTP method", Enum: []string{"GET", "POST"}},
		},
		Required: []string{"method"},
	}

	params := schema.Parameters()
	if params["type"] != "object" {
		t.Errorf("type = %v", params["type"])
	}
	props := params["properties"].(map[string]any)
	method := props["method"].(map[string]any)
	if method["type"] != "string" || method["description"] != "HTTP method" {
		t.Errorf("method property = %v", method)
	}
	enum := method["enum"].([]string)
	if len(enum) != 2 {
		t.Errorf("enum = %v", enum)
	}
}

func TestSchemaParameters_EmptySchema(t *testing.T) {
	params := Schema{}.Parameters()
	if params["type"] != "object" {
		t.Errorf("type = %v", params["type"])
	}
	if _, hasRequired := params["required"]; hasRequired {
		t.Error("empty schema should omit required")
	}
}
