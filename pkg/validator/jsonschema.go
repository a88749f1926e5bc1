package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
)

// JSONSchema compiles a JSON Schema document and returns a validator that
// rejects any structured payload failing to conform. This is the substrate's
// analogue of the spec's program-validator combinators for operators who'd
// rather declare a schema document than write a Go predicate.
func JSONSchema(schemaID string, schemaDoc map[string]any) (Func, error) {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("validator: marshaling json schema %s: %w", schemaID, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaID, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("validator: adding json schema resource %s: %w", schemaID, err)
	}
	schema, err := compiler.Compile(schemaID)
	if err != nil {
		return nil, fmt.Errorf("validator: compiling json schema %s: %w", schemaID, err)
	}
	return func(ctx context.Context, u uri.URI, payload record.Payload, read ReadFunc) error {
		if payload.IsBinary() {
			return substrate.NewError(substrate.KindValidationFailed, "binary payload cannot be validated against a json schema")
		}
		if err := schema.Validate(payload.Struct); err != nil {
			return substrate.NewError(substrate.KindValidationFailed, "json schema: %v", err)
		}
		return nil
	}, nil
}
