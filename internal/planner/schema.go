package planner

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Document names a JSON document shape a stage asks the model to produce.
type Document string

const (
	Curriculum   Document = "curriculum"
	Takeaways    Document = "takeaways"
	Sections     Document = "sections"
	Executive    Document = "executive"
	KeyTerms     Document = "key_terms"
	Limitations  Document = "limitations"
	LinkedInPost Document = "linkedin_post"
	Article      Document = "article"
)

var (
	compileMu sync.Mutex
	compiled  = map[Document]*jsonschema.Schema{}
)

// Schema compiles (once) and returns the schema for doc.
func Schema(doc Document) (*jsonschema.Schema, error) {
	compileMu.Lock()
	defer compileMu.Unlock()
	if s, ok := compiled[doc]; ok {
		return s, nil
	}
	name := "schemas/" + string(doc) + ".json"
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("unknown document %q: %w", doc, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", doc, err)
	}
	compiled[doc] = s
	return s, nil
}

// Validate checks that data is JSON matching the schema for doc.
func Validate(doc Document, data []byte) error {
	s, err := Schema(doc)
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%s is not valid JSON: %w", doc, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s does not match schema: %w", doc, err)
	}
	return nil
}
