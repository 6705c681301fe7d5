package layout

import (
	"crypto/sha256"
	"encoding/hex"

	"movepvm/internal/types"
)

// Tag identifies a ground struct type in global storage.
type Tag [32]byte

func (t Tag) String() string { return hex.EncodeToString(t[:]) }

// TagOf hashes the canonical key. It does not consult any resolver state, so
// identical descriptors give identical tags across compilations.
func TagOf(t types.Type) Tag {
	return sha256.Sum256([]byte(t.Key()))
}

// StructTag returns the storage tag of a ground struct instantiation.
func (r *Resolver) StructTag(t types.Type) (Tag, error) {
	if t.Kind != types.KindStruct {
		return Tag{}, &LayoutError{Kind: LayoutErrNotStruct, Type: t.Key()}
	}
	if !t.IsGround() {
		return Tag{}, &LayoutError{Kind: LayoutErrUnresolvedGeneric, Type: t.Key()}
	}
	key := t.Key()
	if tag, ok := r.cache.tag(key); ok {
		return tag, nil
	}
	return r.cache.putTag(key, TagOf(t)), nil
}
