package solana

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// metadataV1Key is the Metaplex account key of a token metadata account.
const metadataV1Key = 4

// ErrInvalidMetadata is returned for account data that is not Metaplex metadata.
var ErrInvalidMetadata = errors.New("invalid metaplex metadata")

// Metadata is the on-chain part of Metaplex token metadata.
type Metadata struct {
	UpdateAuthority string
	Mint            string
	Name            string
	Symbol          string
	URI             string
}

// ValidAddress reports whether addr is a base58 encoded 32-byte public key.
func ValidAddress(addr string) bool {
	b, err := base58.Decode(addr)
	return err == nil && len(b) == 32
}

// MetadataPDA derives the Metaplex metadata account of a mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint %s: %w", mint, err)
	}
	programBytes, err := base58.Decode(MetaplexProgramID)
	if err != nil {
		return "", fmt.Errorf("decode metaplex program id: %w", err)
	}
	if len(mintBytes) != 32 || len(programBytes) != 32 {
		return "", fmt.Errorf("mint %s is not a 32-byte public key", mint)
	}

	seeds := [][]byte{
		[]byte("metadata"),
		programBytes,
		mintBytes,
	}

	pda := derivePDA(seeds, programBytes)
	if pda == "" {
		return "", fmt.Errorf("no valid bump for mint %s", mint)
	}
	return pda, nil
}

// ParseMetadata parses base64 Metaplex Token Metadata account data.
// Metaplex Metadata layout:
// - key: u8 (1 byte, 4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: String (4 + length bytes, max 32 chars)
// - symbol: String (4 + length bytes, max 10 chars)
// - uri: String (4 + length bytes, max 200 chars)
// ...and more fields
func ParseMetadata(data string) (*Metadata, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	if len(decoded) < 65 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidMetadata, len(decoded))
	}
	if decoded[0] != metadataV1Key {
		return nil, fmt.Errorf("%w: key %d", ErrInvalidMetadata, decoded[0])
	}

	meta := &Metadata{
		UpdateAuthority: base58.Encode(decoded[1:33]),
		Mint:            base58.Encode(decoded[33:65]),
	}

	offset := 65
	fields := []struct {
		dst    *string
		maxLen uint32
	}{
		{&meta.Name, 64},
		{&meta.Symbol, 32},
		{&meta.URI, 256},
	}
	for _, f := range fields {
		s, next, err := readBorshString(decoded, offset, f.maxLen)
		if err != nil {
			return nil, err
		}
		*f.dst = s
		offset = next
	}

	return meta, nil
}

// readBorshString reads a u32-length-prefixed string padded with NULs.
func readBorshString(b []byte, offset int, maxLen uint32) (string, int, error) {
	if offset+4 > len(b) {
		return "", offset, fmt.Errorf("%w: truncated at %d", ErrInvalidMetadata, offset)
	}
	n := binary.LittleEndian.Uint32(b[offset:])
	offset += 4
	if n > maxLen || offset+int(n) > len(b) {
		return "", offset, fmt.Errorf("%w: string length %d at %d", ErrInvalidMetadata, n, offset)
	}
	s := strings.TrimRight(string(b[offset:offset+int(n)]), "\x00")
	return strings.TrimSpace(s), offset + int(n), nil
}

// derivePDA derives a Program Derived Address using the Solana algorithm.
func derivePDA(seeds [][]byte, programID []byte) string {
	// 1. Concatenate all seeds with bump
	// 2. Append program ID and "ProgramDerivedAddress" marker
	// 3. SHA256 hash
	// 4. Find bump seed that results in off-curve point
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
