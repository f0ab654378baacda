package asset

import "fmt"

// TargetKind says how an edge target is addressed.
type TargetKind int

const (
	// TargetNone is the zero value; a target with no address is invalid.
	TargetNone TargetKind = iota
	// TargetLocal addresses an earlier spec in the same batch by position.
	TargetLocal
	// TargetLocalRef addresses an earlier spec in the same batch by its Ref alias.
	TargetLocalRef
	// TargetKey addresses the current version of a logical asset by
	// idempotency key, in the owning spec's project.
	TargetKey
	// TargetAssetID pins a specific version row by id.
	TargetAssetID
	// TargetInvalid marks a target decoded with more than one address set.
	TargetInvalid
)

func (k TargetKind) String() string {
	switch k {
	case TargetNone:
		return "none"
	case TargetLocal:
		return "index"
	case TargetLocalRef:
		return "ref"
	case TargetKey:
		return "key"
	case TargetAssetID:
		return "asset_id"
	case TargetInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// Target is exactly one of the addresses above. Build it with Local,
// LocalRef, Key or AssetID rather than as a literal.
type Target struct {
	Kind    TargetKind
	Index   int
	Ref     string
	Key     string
	AssetID string
}

// Local targets the spec at position i of the same batch.
func Local(i int) Target { return Target{Kind: TargetLocal, Index: i} }

// LocalRef targets the spec whose Ref equals name.
func LocalRef(name string) Target { return Target{Kind: TargetLocalRef, Ref: name} }

// Key targets the current row for key in the owning spec's project.
func Key(k string) Target { return Target{Kind: TargetKey, Key: k} }

// AssetID pins the version row with the given id.
func AssetID(id string) Target { return Target{Kind: TargetAssetID, AssetID: id} }

func (t Target) String() string {
	switch t.Kind {
	case TargetLocal:
		return fmt.Sprintf("index:%d", t.Index)
	case TargetLocalRef:
		return "ref:" + t.Ref
	case TargetKey:
		return "key:" + t.Key
	case TargetAssetID:
		return "asset_id:" + t.AssetID
	default:
		return t.Kind.String()
	}
}
