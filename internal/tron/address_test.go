package tron

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestAddressRoundTrip(t *testing.T) {
	addrs := []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000001"),
		common.HexToAddress("0x7d2a4f17a269b0c47fa35be4b35e386b7e6a2b86"),
		common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"),
	}
	for _, addr := range addrs {
		encoded := EncodeAddress(addr)
		if !strings.HasPrefix(encoded, "T") {
			t.Fatalf("TRON address must start with T: %s", encoded)
		}
		decoded, err := DecodeAddress(encoded)
		if err != nil {
			t.Fatalf("decode %s: %v", encoded, err)
		}
		if decoded != addr {
			t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
		}
	}
}

func TestDecodeAddressRejectsBadChecksum(t *testing.T) {
	encoded := EncodeAddress(common.HexToAddress("0x7d2a4f17a269b0c47fa35be4b35e386b7e6a2b86"))
	last := encoded[len(encoded)-1]
	replacement := byte('1')
	if last == replacement {
		replacement = '2'
	}
	tampered := encoded[:len(encoded)-1] + string(replacement)
	if _, err := DecodeAddress(tampered); err == nil {
		t.Fatalf("expected checksum error for %s", tampered)
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "0OIl", "not-base58!"} {
		if _, err := DecodeAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
