package operation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed operation.schema.json
var schemaText string

const schemaURL = "https://reshape.local/operation.schema.json"

var (
	schemaOnce      sync.Once
	operationSchema *jsonschema.Schema
	batchSchema     *jsonschema.Schema
	schemaErr       error
)

func loadSchemas() error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaText)); err != nil {
			schemaErr = fmt.Errorf("failed to load operation schema: %w", err)
			return
		}
		if operationSchema, schemaErr = compiler.Compile(schemaURL + "#/$defs/operation"); schemaErr != nil {
			return
		}
		batchSchema, schemaErr = compiler.Compile(schemaURL + "#/$defs/batch")
	})
	return schemaErr
}

func validate(schema func() *jsonschema.Schema, v any) error {
	if err := loadSchemas(); err != nil {
		return Wrap(KindInternal, err, "schema unavailable")
	}
	if err := schema().Validate(v); err != nil {
		return Wrap(KindValidation, err, "invalid operation")
	}
	return nil
}

// Validate checks op against the operation schema.
func Validate(op Operation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return Wrap(KindInternal, err, "failed to marshal operation")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Wrap(KindInternal, err, "failed to normalize operation")
	}
	return validate(func() *jsonschema.Schema { return operationSchema }, v)
}

// Decode parses and validates one JSON operation.
func Decode(data []byte) (Operation, error) {
	var op Operation
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return op, Wrap(KindValidation, err, "malformed operation JSON")
	}
	if err := validate(func() *jsonschema.Schema { return operationSchema }, v); err != nil {
		return op, err
	}
	if err := json.Unmarshal(data, &op); err != nil {
		return op, Wrap(KindValidation, err, "malformed operation JSON")
	}
	op.Normalize()
	return op, nil
}

// DecodeBatch parses and validates a JSON batch.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return b, Wrap(KindValidation, err, "malformed batch JSON")
	}
	if err := validate(func() *jsonschema.Schema { return batchSchema }, v); err != nil {
		return b, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, Wrap(KindValidation, err, "malformed batch JSON")
	}
	for i := range b.Operations {
		b.Operations[i].Normalize()
	}
	return b, nil
}
