package asset

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/assetgraph/internal/payload"
)

// Validation error codes (E100-E199)
const (
	// Spec field errors (E101-E109)
	ErrKeyEmpty         = "E101" // idempotency_key is required
	ErrProjectEmpty     = "E102" // project_id is required
	ErrTypeEmpty        = "E103" // asset_type is required
	ErrKeyMalformed     = "E104" // control chars, surrounding space or too long
	ErrDuplicateKey     = "E105" // (project_id, idempotency_key) repeated in batch
	ErrBadRef           = "E106" // duplicate or malformed alias
	ErrUIDConflict      = "E107" // one asset_uid claimed by two logical assets
	ErrUIDMismatch      = "E108" // asset_uid differs from the stored one
	ErrPayloadNotCanon  = "E109" // metadata or content cannot be canonicalized
	ErrTargetKind       = "E110" // target must set exactly one address
	ErrTargetIndex      = "E111" // local target out of range, self or forward
	ErrTargetRef        = "E112" // unknown alias or alias of a later spec
	ErrTargetKey        = "E113" // malformed external key
	ErrEdgeType         = "E114" // empty or malformed edge_type
	ErrTargetAssetID    = "E115" // malformed pinned asset id
	ErrEdgeMetaNotCanon = "E116" // edge metadata cannot be canonicalized
	ErrUIDMalformed     = "E117" // asset_uid does not match the id format

	// Batch errors (E120-E129)
	ErrEmptyBatch = "E120" // batch has no specs
)

// MaxKeyBytes bounds idempotency keys.
const MaxKeyBytes = 512

var (
	refPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.:-]{0,127}$`)
	edgeTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.:-]{0,127}$`)
	assetIDPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)
)

// ValidationError is one problem found in a batch.
type ValidationError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] specs[%d].%s: %s", e.Code, e.Index, e.Field, e.Message)
}

// Validate checks a batch without touching storage.
// Returns all errors found (does not fail-fast), ordered by spec index.
func Validate(specs []WriteSpec) []ValidationError {
	if len(specs) == 0 {
		return []ValidationError{{
			Index:   -1,
			Field:   "specs",
			Code:    ErrEmptyBatch,
			Message: "batch must contain at least one spec",
		}}
	}

	v := &validator{
		specs:   specs,
		keys:    make(map[projectKey]int, len(specs)),
		refs:    make(map[string]int),
		uidKeys: make(map[string]projectKey),
	}
	v.indexBatch()
	for i := range specs {
		v.validateSpec(i)
	}
	return v.errs
}

type projectKey struct {
	project string
	key     string
}

type validator struct {
	specs   []WriteSpec
	keys    map[projectKey]int
	refs    map[string]int
	uidKeys map[string]projectKey
	errs    []ValidationError
}

func (v *validator) add(i int, field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Index:   i,
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// indexBatch records the first position of each key and alias so that
// edge targets can be checked against them.
func (v *validator) indexBatch() {
	for i, s := range v.specs {
		pk := projectKey{s.ProjectID, s.IdempotencyKey}
		if _, seen := v.keys[pk]; !seen && s.IdempotencyKey != "" {
			v.keys[pk] = i
		}
		if s.Ref != "" {
			if _, seen := v.refs[s.Ref]; !seen {
				v.refs[s.Ref] = i
			}
		}
	}
}

func (v *validator) validateSpec(i int) {
	s := v.specs[i]

	// E101/E104: idempotency key
	if s.IdempotencyKey == "" {
		v.add(i, "idempotency_key", ErrKeyEmpty, "idempotency_key is required")
	} else if msg := checkKey(s.IdempotencyKey); msg != "" {
		v.add(i, "idempotency_key", ErrKeyMalformed, "%s", msg)
	}

	// E102: project
	if strings.TrimSpace(s.ProjectID) == "" {
		v.add(i, "project_id", ErrProjectEmpty, "project_id is required")
	}

	// E103: type
	if strings.TrimSpace(s.AssetType) == "" {
		v.add(i, "asset_type", ErrTypeEmpty, "asset_type is required")
	}

	// E105: duplicate logical asset in batch
	if s.IdempotencyKey != "" {
		if first := v.keys[projectKey{s.ProjectID, s.IdempotencyKey}]; first != i {
			v.add(i, "idempotency_key", ErrDuplicateKey,
				"key %q in project %q already used by specs[%d]", s.IdempotencyKey, s.ProjectID, first)
		}
	}

	// E106: alias
	if s.Ref != "" {
		if !refPattern.MatchString(s.Ref) {
			v.add(i, "ref", ErrBadRef, "ref %q must match %s", s.Ref, refPattern.String())
		} else if first := v.refs[s.Ref]; first != i {
			v.add(i, "ref", ErrBadRef, "ref %q already used by specs[%d]", s.Ref, first)
		}
	}

	// E117/E107: well-formed uid, one uid per logical asset
	if s.AssetUID != "" && !assetIDPattern.MatchString(s.AssetUID) {
		v.add(i, "asset_uid", ErrUIDMalformed, "asset_uid %q is malformed", s.AssetUID)
	} else if s.AssetUID != "" {
		pk := projectKey{s.ProjectID, s.IdempotencyKey}
		if prev, seen := v.uidKeys[s.AssetUID]; seen && prev != pk {
			v.add(i, "asset_uid", ErrUIDConflict,
				"asset_uid %q already expected for key %q in project %q", s.AssetUID, prev.key, prev.project)
		} else if !seen {
			v.uidKeys[s.AssetUID] = pk
		}
	}

	// E109: payloads must canonicalize
	if _, err := payload.MarshalCanonical(s.Metadata); err != nil {
		v.add(i, "metadata", ErrPayloadNotCanon, "%v", err)
	}
	if _, err := payload.MarshalCanonical(s.Content); err != nil {
		v.add(i, "content", ErrPayloadNotCanon, "%v", err)
	}

	for j, e := range s.Edges {
		v.validateEdge(i, j, e)
	}
}

func (v *validator) validateEdge(i, j int, e EdgeSpec) {
	s := v.specs[i]
	field := fmt.Sprintf("edges[%d]", j)

	// E114: edge type
	if !edgeTypePattern.MatchString(e.EdgeType) {
		if e.EdgeType == "" {
			v.add(i, field+".edge_type", ErrEdgeType, "edge_type is required")
		} else {
			v.add(i, field+".edge_type", ErrEdgeType, "edge_type %q must match %s", e.EdgeType, edgeTypePattern.String())
		}
	}

	// E116: edge metadata
	if _, err := payload.MarshalCanonical(e.Metadata); err != nil {
		v.add(i, field+".metadata", ErrEdgeMetaNotCanon, "%v", err)
	}

	t := e.Target
	tf := field + ".target"
	switch t.Kind {
	case TargetLocal:
		// E111
		switch {
		case t.Index < 0 || t.Index >= len(v.specs):
			v.add(i, tf, ErrTargetIndex, "index %d out of range [0,%d)", t.Index, len(v.specs))
		case t.Index == i:
			v.add(i, tf, ErrTargetIndex, "index %d references its own spec", t.Index)
		case t.Index > i:
			v.add(i, tf, ErrTargetIndex, "index %d is a forward reference", t.Index)
		}
	case TargetLocalRef:
		// E112
		at, ok := v.refs[t.Ref]
		switch {
		case t.Ref == "":
			v.add(i, tf, ErrTargetRef, "ref is empty")
		case !ok:
			v.add(i, tf, ErrTargetRef, "unknown ref %q", t.Ref)
		case at >= i:
			v.add(i, tf, ErrTargetRef, "ref %q names specs[%d], which is not earlier in the batch", t.Ref, at)
		}
	case TargetKey:
		// E113, and E111 when the key belongs to this or a later spec
		if t.Key == "" {
			v.add(i, tf, ErrTargetKey, "key is empty")
		} else if msg := checkKey(t.Key); msg != "" {
			v.add(i, tf, ErrTargetKey, "%s", msg)
		} else if at, ok := v.keys[projectKey{s.ProjectID, t.Key}]; ok && at >= i {
			if at == i {
				v.add(i, tf, ErrTargetIndex, "key %q references its own spec", t.Key)
			} else {
				v.add(i, tf, ErrTargetIndex, "key %q is written by later specs[%d]", t.Key, at)
			}
		}
	case TargetAssetID:
		// E115
		if !assetIDPattern.MatchString(t.AssetID) {
			v.add(i, tf, ErrTargetAssetID, "asset id %q is malformed", t.AssetID)
		}
	default:
		// E110
		v.add(i, tf, ErrTargetKind, "target must set exactly one of index, ref, key, asset_id")
	}
}

// checkKey returns a description of what is wrong with k, or "".
func checkKey(k string) string {
	if len(k) > MaxKeyBytes {
		return fmt.Sprintf("key is %d bytes, limit is %d", len(k), MaxKeyBytes)
	}
	if !utf8.ValidString(k) {
		return "key is not valid UTF-8"
	}
	if strings.TrimSpace(k) != k {
		return "key has leading or trailing whitespace"
	}
	for _, r := range k {
		if unicode.IsControl(r) {
			return fmt.Sprintf("key contains control character %U", r)
		}
	}
	return ""
}

// LocalKeyIndex returns the batch position that writes key in project,
// if that position is before limit. The store uses it to treat Key targets
// that name an earlier spec as batch-local references.
func LocalKeyIndex(specs []WriteSpec, project, key string, limit int) (int, bool) {
	for i := 0; i < limit && i < len(specs); i++ {
		if specs[i].ProjectID == project && specs[i].IdempotencyKey == key {
			return i, true
		}
	}
	return 0, false
}
