package stage

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 200))

	cases := []struct {
		algo  CompressionAlgorithm
		level int
	}{
		{AlgoZstd, 3},
		{AlgoGzip, 6},
		{AlgoBrotli, 5},
		{AlgoLZ4, 4},
	}

	for _, tc := range cases {
		t.Run(string(tc.algo), func(t *testing.T) {
			s, err := NewCompression(tc.algo, tc.level, 1)
			if err != nil {
				t.Fatalf("NewCompression: %v", err)
			}
			compressed, err := s.Forward(payload, &Context{})
			if err != nil {
				t.Fatalf("Forward: %v", err)
			}
			restored, err := s.Reverse(compressed, &Context{})
			if err != nil {
				t.Fatalf("Reverse: %v", err)
			}
			if !bytes.Equal(restored, payload) {
				t.Fatalf("round trip mismatch for %s", tc.algo)
			}
		})
	}
}

func TestCompressionLevelValidation(t *testing.T) {
	if _, err := NewCompression(AlgoZstd, 0, 1); err == nil {
		t.Fatalf("expected error for level below range")
	}
	if _, err := NewCompression(AlgoZstd, 20, 1); err == nil {
		t.Fatalf("expected error for level above range")
	}
}

func TestCompressionReverseCorruptData(t *testing.T) {
	s, err := NewCompression(AlgoGzip, 6, 1)
	if err != nil {
		t.Fatalf("NewCompression: %v", err)
	}
	_, err = s.Reverse([]byte("not gzip data at all"), &Context{})
	if err == nil {
		t.Fatalf("expected decompress to fail on garbage input")
	}
}
