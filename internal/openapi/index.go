// Package openapi loads the OpenAPI document describing the BFF surface,
// indexes its operations by operationId and validates request bodies
// against their schemas.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed bff.yaml
var document []byte

// IndexedOperation is one operation of the document.
type IndexedOperation struct {
	OperationID  string
	Method       string
	PathTemplate string
	RequestBody  *openapi3.RequestBody
}

// ValidationError describes a schema validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Index is the loaded document with its operations keyed by operationId.
type Index struct {
	doc        *openapi3.T
	operations map[string]IndexedOperation
	rendered   []byte
}

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*Index, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("openapi: loading document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: validating document: %w", err)
	}
	rendered, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: encoding document: %w", err)
	}

	idx := &Index{doc: doc, operations: make(map[string]IndexedOperation), rendered: rendered}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			if op.OperationID == "" {
				continue
			}
			var body *openapi3.RequestBody
			if op.RequestBody != nil {
				body = op.RequestBody.Value
			}
			idx.operations[op.OperationID] = IndexedOperation{
				OperationID:  op.OperationID,
				Method:       method,
				PathTemplate: path,
				RequestBody:  body,
			}
		}
	}
	return idx, nil
}

// GetOperation returns the operation with the given id.
func (idx *Index) GetOperation(operationID string) (IndexedOperation, bool) {
	op, ok := idx.operations[operationID]
	return op, ok
}

// AllOperationIDs returns every operation id, sorted.
func (idx *Index) AllOperationIDs() []string {
	ids := make([]string, 0, len(idx.operations))
	for id := range idx.operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Documents reports whether method and path template name an operation.
// Templates use the router's {param} syntax.
func (idx *Index) Documents(method, pathTemplate string) bool {
	for _, op := range idx.operations {
		if op.Method == method && op.PathTemplate == pathTemplate {
			return true
		}
	}
	return false
}

// ScreenIDs returns the screen ids the document enumerates.
func (idx *Index) ScreenIDs() []string {
	ref := idx.doc.Components.Parameters["Screen"]
	if ref == nil || ref.Value == nil || ref.Value.Schema == nil || ref.Value.Schema.Value == nil {
		return nil
	}
	var out []string
	for _, v := range ref.Value.Schema.Value.Enum {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ValidateRequest checks a decoded JSON body against the operation's request
// schema. It returns nil when the body is valid or the operation takes none.
func (idx *Index) ValidateRequest(operationID string, body any) []ValidationError {
	op, ok := idx.operations[operationID]
	if !ok {
		return []ValidationError{{Message: fmt.Sprintf("operation %s not found", operationID)}}
	}
	if op.RequestBody == nil {
		return nil
	}
	ct := op.RequestBody.Content.Get("application/json")
	if ct == nil || ct.Schema == nil || ct.Schema.Value == nil {
		return nil
	}

	err := ct.Schema.Value.VisitJSON(body, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	var multi openapi3.MultiError
	if !errors.As(err, &multi) {
		return []ValidationError{schemaError(err)}
	}
	out := make([]ValidationError, 0, len(multi))
	for _, e := range multi {
		out = append(out, schemaError(e))
	}
	return out
}

func schemaError(err error) ValidationError {
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return ValidationError{Field: strings.Join(se.JSONPointer(), "."), Message: se.Reason}
	}
	return ValidationError{Message: err.Error()}
}

// Handler serves the document as JSON.
func (idx *Index) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(idx.rendered)
	}
}
