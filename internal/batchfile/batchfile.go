// Package batchfile reads write batches from YAML or JSON documents.
//
// A document has a single "specs" list; each entry maps onto
// asset.WriteSpec. The document shape is checked against an embedded CUE
// schema before conversion, so typos in field names and wrong value types
// are reported with their path instead of being silently dropped.
package batchfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/assetgraph/internal/asset"
	"github.com/roach88/assetgraph/internal/payload"
)

//go:embed schema.cue
var schemaSource string

// ShapeError lists every schema violation found in a document.
type ShapeError struct {
	Problems []string
}

func (e *ShapeError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid batch document: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid batch document (%d problems):\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

type document struct {
	Specs []specDoc `yaml:"specs"`
}

type specDoc struct {
	Ref            string         `yaml:"ref"`
	AssetUID       string         `yaml:"asset_uid"`
	ProjectID      string         `yaml:"project_id"`
	IdempotencyKey string         `yaml:"idempotency_key"`
	AssetType      string         `yaml:"asset_type"`
	AssetSubtype   string         `yaml:"asset_subtype"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	Metadata       map[string]any `yaml:"metadata"`
	Content        map[string]any `yaml:"content"`
	Edges          []edgeDoc      `yaml:"edges"`
}

type edgeDoc struct {
	Target   targetDoc      `yaml:"target"`
	EdgeType string         `yaml:"edge_type"`
	Metadata map[string]any `yaml:"metadata"`
}

type targetDoc struct {
	Index   *int    `yaml:"index"`
	Ref     *string `yaml:"ref"`
	Key     *string `yaml:"key"`
	AssetID *string `yaml:"asset_id"`
}

// Load reads a batch file from disk.
func Load(path string) ([]asset.WriteSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	specs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// Read parses a batch document from r.
func Read(r io.Reader) ([]asset.WriteSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON batch document. The returned specs have not
// been validated; pass them to asset.Validate or straight to the store.
func Parse(data []byte) ([]asset.WriteSpec, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	if raw == nil {
		return nil, errors.New("batch document is empty")
	}

	normalized, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	if err := checkShape(normalized); err != nil {
		return nil, err
	}

	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}

	specs := make([]asset.WriteSpec, len(doc.Specs))
	for i, s := range doc.Specs {
		spec, err := s.toWriteSpec()
		if err != nil {
			return nil, fmt.Errorf("specs[%d]: %w", i, err)
		}
		specs[i] = spec
	}
	return specs, nil
}

// checkShape unifies the document with #Batch and reports every violation.
func checkShape(doc any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("batch.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile batch schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Batch")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return shapeError(err)
	}
	return nil
}

func shapeError(err error) *ShapeError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ShapeError{Problems: []string{err.Error()}}
	}

	seen := make(map[string]bool, len(errs))
	problems := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if path := e.Path(); len(path) > 0 && !strings.HasPrefix(msg, strings.Join(path, ".")) {
			msg = strings.Join(path, ".") + ": " + msg
		}
		if !seen[msg] {
			seen[msg] = true
			problems = append(problems, msg)
		}
	}
	return &ShapeError{Problems: problems}
}

// normalize turns yaml.v3's map[any]any nodes into map[string]any so the
// document can be encoded as CUE.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v must be a string, got %T", k, k)
			}
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

func (s specDoc) toWriteSpec() (asset.WriteSpec, error) {
	metadata, err := payload.ObjectFrom(s.Metadata)
	if err != nil {
		return asset.WriteSpec{}, fmt.Errorf("metadata: %w", err)
	}
	content, err := payload.ObjectFrom(s.Content)
	if err != nil {
		return asset.WriteSpec{}, fmt.Errorf("content: %w", err)
	}

	spec := asset.WriteSpec{
		Ref:            s.Ref,
		AssetUID:       s.AssetUID,
		ProjectID:      s.ProjectID,
		IdempotencyKey: s.IdempotencyKey,
		AssetType:      s.AssetType,
		AssetSubtype:   s.AssetSubtype,
		Name:           s.Name,
		Description:    s.Description,
		Metadata:       metadata,
		Content:        content,
	}

	for j, e := range s.Edges {
		meta, err := payload.ObjectFrom(e.Metadata)
		if err != nil {
			return asset.WriteSpec{}, fmt.Errorf("edges[%d].metadata: %w", j, err)
		}
		spec.Edges = append(spec.Edges, asset.EdgeSpec{
			Target:   e.Target.toTarget(),
			EdgeType: e.EdgeType,
			Metadata: meta,
		})
	}
	return spec, nil
}

// toTarget maps the one address that is set. Zero or several set addresses
// produce a target the validator rejects.
func (t targetDoc) toTarget() asset.Target {
	set := 0
	var target asset.Target
	if t.Index != nil {
		set++
		target = asset.Local(*t.Index)
	}
	if t.Ref != nil {
		set++
		target = asset.LocalRef(*t.Ref)
	}
	if t.Key != nil {
		set++
		target = asset.Key(*t.Key)
	}
	if t.AssetID != nil {
		set++
		target = asset.AssetID(*t.AssetID)
	}

	switch set {
	case 0:
		return asset.Target{}
	case 1:
		return target
	default:
		return asset.Target{Kind: asset.TargetInvalid}
	}
}
