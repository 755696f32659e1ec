package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"
)

func newSchemaCommand(exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "schema {spec|registry}",
		Short:     "Print the JSON Schema describing a mapping spec or transform registry document",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"spec", "registry"},
		RunE: func(_ *cobra.Command, args []string) error {
			var s *jsonschema.Schema
			if args[0] == "spec" {
				s = mappingSpecSchema()
			} else {
				s = transformRegistrySchema()
			}
			b, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				*exitCode = exitUsageError
				return fmt.Errorf("marshal schema: %w", err)
			}
			fmt.Println(string(b))
			*exitCode = exitOK
			return nil
		},
	}
	return cmd
}

func mappingSpecSchema() *jsonschema.Schema {
	idPattern := `^(s|d|c|t):[A-Za-z_][A-Za-z0-9_]*$`
	sourceColumn := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":   {Type: "string", Pattern: idPattern},
			"name": {Type: "string"},
			"type": {Type: "string"},
		},
		Required: []string{"id", "name", "type"},
	}
	derivedVariable := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":            {Type: "string", Pattern: idPattern},
			"name":          {Type: "string"},
			"type":          {Type: "string"},
			"inputs":        {Type: "array", Items: &jsonschema.Schema{Type: "string", Pattern: idPattern}},
			"transform_ref": {Types: []string{"string", "null"}, Pattern: idPattern},
			"params":        {Type: "object"},
		},
		Required: []string{"id", "name", "type", "inputs"},
	}
	constraint := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":         {Type: "string", Pattern: idPattern},
			"name":       {Type: "string"},
			"inputs":     {Type: "array", Items: &jsonschema.Schema{Type: "string", Pattern: idPattern}},
			"expression": {Type: "string"},
		},
		Required: []string{"id", "name", "inputs", "expression"},
	}
	return &jsonschema.Schema{
		Title: "MappingSpec",
		Type:  "object",
		Properties: map[string]*jsonschema.Schema{
			"schema_version": {Type: "string"},
			"sources":        {Type: "array", Items: sourceColumn},
			"derived":        {Type: "array", Items: derivedVariable},
			"constraints":    {Type: "array", Items: constraint},
		},
		Required: []string{"schema_version", "sources", "derived", "constraints"},
	}
}

func transformRegistrySchema() *jsonschema.Schema {
	implFingerprint := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"algo":   {Type: "string"},
			"source": {Type: "string"},
			"ref":    {Type: "string"},
			"digest": {Type: "string"},
		},
		Required: []string{"algo", "digest"},
	}
	transform := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":               {Type: "string", Pattern: `^t:[A-Za-z_][A-Za-z0-9_]*$`},
			"version":          {Type: "string"},
			"kind":             {Type: "string"},
			"signature":        {Type: "string"},
			"impl_fingerprint": implFingerprint,
		},
		Required: []string{"id", "version", "kind", "impl_fingerprint"},
	}
	return &jsonschema.Schema{
		Title: "TransformRegistry",
		Type:  "object",
		Properties: map[string]*jsonschema.Schema{
			"transforms": {Type: "array", Items: transform},
		},
		Required: []string{"transforms"},
	}
}
