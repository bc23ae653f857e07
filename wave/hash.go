package wave

import (
	"crypto/sha256"

	"github.com/luxfi/ids"
)

// ContentHash returns the stable content-identity of a wave DSL text,
// matching the contract/wave identity scheme (a wave's frozen text hashes
// to the same ID as long as its bytes are unchanged).
func ContentHash(src string) ids.ID {
	sum := sha256.Sum256([]byte(src))
	id, _ := ids.ToID(sum[:])
	return id
}
