package dispatch

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	emptySha256   = "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	emptyIPFSHash = "QmdfTbBqBPQ7VNxZEYEj14VmRuZBkqFbiwReogJgS1zR1n"
)

func TestIPFSHashConversion(t *testing.T) {
	hash, err := IPFSHashToSha256(emptyIPFSHash)
	require.NoError(t, err)
	assert.Equal(t, emptySha256, hash)

	ipfsHash, err := Sha256ToIPFSHash(emptySha256)
	require.NoError(t, err)
	assert.Equal(t, emptyIPFSHash, ipfsHash)
}

func TestIPFSHashConversionRejectsInvalid(t *testing.T) {
	_, err := IPFSHashToSha256("not-base58-0OIl")
	assert.Error(t, err)
	_, err = IPFSHashToSha256("")
	assert.Error(t, err)

	_, err = Sha256ToIPFSHash("0x1234")
	assert.Error(t, err)
	_, err = Sha256ToIPFSHash("0xzz")
	assert.Error(t, err)
}

func TestIPFSHashRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		digest := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "digest").([]byte)
		hash := "0x" + hex.EncodeToString(digest)

		ipfsHash, err := Sha256ToIPFSHash(hash)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		back, err := IPFSHashToSha256(ipfsHash)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if back != hash {
			t.Fatalf("round trip changed %s to %s", hash, back)
		}
	})
}
