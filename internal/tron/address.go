package tron

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TRON base58check addresses carry a 0x41 prefix byte ahead of the 20 byte
// EVM account, followed by a 4 byte double-sha256 checksum.
const addressPrefix = 0x41

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	// ErrInvalidAddress indicates a malformed base58 TRON address.
	ErrInvalidAddress = errors.New("invalid TRON address")

	base58Index = buildBase58Index()
	big58       = big.NewInt(58)
)

func buildBase58Index() [128]int8 {
	var idx [128]int8
	for i := range idx {
		idx[i] = -1
	}
	for i, c := range base58Alphabet {
		idx[c] = int8(i)
	}
	return idx
}

// EncodeAddress renders an EVM style account as a base58check T-address.
func EncodeAddress(addr common.Address) string {
	payload := make([]byte, 0, 25)
	payload = append(payload, addressPrefix)
	payload = append(payload, addr.Bytes()...)
	payload = append(payload, checksum(payload)...)
	return base58Encode(payload)
}

// DecodeAddress parses a base58check T-address into an EVM style account.
func DecodeAddress(encoded string) (common.Address, error) {
	raw, err := base58Decode(encoded)
	if err != nil {
		return common.Address{}, err
	}
	if len(raw) != 25 {
		return common.Address{}, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}
	payload, sum := raw[:21], raw[21:]
	if !bytes.Equal(sum, checksum(payload)) {
		return common.Address{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	if payload[0] != addressPrefix {
		return common.Address{}, fmt.Errorf("%w: unexpected prefix 0x%02x", ErrInvalidAddress, payload[0])
	}
	return common.BytesToAddress(payload[1:]), nil
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func base58Encode(input []byte) string {
	zeros := 0
	for zeros < len(input) && input[zeros] == 0 {
		zeros++
	}

	num := new(big.Int).SetBytes(input)
	mod := new(big.Int)
	encoded := make([]byte, 0, len(input)*138/100+1)
	for num.Sign() > 0 {
		num.DivMod(num, big58, mod)
		encoded = append(encoded, base58Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		encoded = append(encoded, base58Alphabet[0])
	}
	for i, j := 0, len(encoded)-1; i < j; i, j = i+1, j-1 {
		encoded[i], encoded[j] = encoded[j], encoded[i]
	}
	return string(encoded)
}

func base58Decode(input string) ([]byte, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}

	num := new(big.Int)
	for _, c := range input {
		if c >= 128 || base58Index[c] < 0 {
			return nil, fmt.Errorf("%w: invalid character %q", ErrInvalidAddress, c)
		}
		num.Mul(num, big58)
		num.Add(num, big.NewInt(int64(base58Index[c])))
	}

	decoded := num.Bytes()
	zeros := 0
	for zeros < len(input) && input[zeros] == base58Alphabet[0] {
		zeros++
	}
	result := make([]byte, zeros+len(decoded))
	copy(result[zeros:], decoded)
	return result, nil
}
