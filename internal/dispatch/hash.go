package dispatch

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// sha256Multihash is the multihash prefix of a sha2-256 digest: function
// code 0x12, digest length 0x20.
var sha256Multihash = []byte{0x12, 0x20}

// IPFSHashToSha256 converts a base58 CIDv0 ("Qm...") into the 0x-prefixed
// hex digest stored on-chain.
func IPFSHashToSha256(ipfsHash string) (string, error) {
	raw := base58.Decode(ipfsHash)
	if len(raw) != 34 || raw[0] != sha256Multihash[0] || raw[1] != sha256Multihash[1] {
		return "", fmt.Errorf("not a sha2-256 IPFS hash: %q", ipfsHash)
	}
	return "0x" + hex.EncodeToString(raw[2:]), nil
}

// Sha256ToIPFSHash converts a 0x-prefixed hex digest back into the IPFS
// hash under which its content is stored.
func Sha256ToIPFSHash(hash string) (string, error) {
	digest, err := hex.DecodeString(strings.TrimPrefix(hash, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid sha256 hash %q: %w", hash, err)
	}
	if len(digest) != 32 {
		return "", fmt.Errorf("invalid sha256 hash %q: want 32 bytes, got %d", hash, len(digest))
	}
	return base58.Encode(append(append([]byte{}, sha256Multihash...), digest...)), nil
}
