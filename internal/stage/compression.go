package stage

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hambosto/adapipe/internal/corerr"
)

// CompressionAlgorithm enumerates the codecs accepted for a Compression
// stage (spec §3).
type CompressionAlgorithm string

const (
	AlgoBrotli CompressionAlgorithm = "brotli"
	AlgoZstd   CompressionAlgorithm = "zstd"
	AlgoLZ4    CompressionAlgorithm = "lz4"
	AlgoGzip   CompressionAlgorithm = "gzip"
)

// maxLevel returns the maximum valid compression level for an algorithm,
// matching spec §3's "level ∈ 1..=max_for_algo".
func maxLevel(algo CompressionAlgorithm) (int, error) {
	switch algo {
	case AlgoBrotli:
		return 11, nil
	case AlgoZstd:
		return 19, nil
	case AlgoLZ4:
		return 9, nil
	case AlgoGzip:
		return 9, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm %q", algo)
	}
}

func validateCompressionDescriptor(d Descriptor) error {
	algo := CompressionAlgorithm(d.Algorithm)
	max, err := maxLevel(algo)
	if err != nil {
		return err
	}
	level, _ := d.Parameters["level"].(float64) // JSON numbers decode as float64
	if level == 0 {
		if lv, ok := d.Parameters["level"].(int); ok {
			level = float64(lv)
		}
	}
	if int(level) < 1 || int(level) > max {
		return fmt.Errorf("compression level %d out of range [1, %d] for %s", int(level), max, algo)
	}
	return nil
}

// codec is the minimal interface each compression algorithm implements.
// Streaming variants are not needed: chunks are already bounded to
// chunk_size, so whole-buffer compress/decompress is the natural shape
// (compare klauspost/compress usage in FairForge-vaultaire's Compressor).
type codec interface {
	compress(data []byte) ([]byte, error)
	decompress(data []byte) ([]byte, error)
}

// Compression applies a configured codec at a configured level, forward
// to compress and reverse to decompress. Reversing bytes not produced by
// the matching algorithm fails with CorruptData (spec §4.5).
type Compression struct {
	algo  CompressionAlgorithm
	level int
	order uint32
	c     codec
}

// NewCompression constructs a Compression stage. level must satisfy
// spec §3's per-algorithm range; construction fails otherwise.
func NewCompression(algo CompressionAlgorithm, level int, order uint32) (*Compression, error) {
	max, err := maxLevel(algo)
	if err != nil {
		return nil, corerr.New(corerr.InvalidConfig, "compression stage", err)
	}
	if level < 1 || level > max {
		return nil, corerr.New(corerr.InvalidConfig, "compression stage",
			fmt.Errorf("level %d out of range [1, %d] for %s", level, max, algo))
	}

	var c codec
	switch algo {
	case AlgoBrotli:
		c = brotliCodec{level: level}
	case AlgoZstd:
		c, err = newZstdCodec(level)
	case AlgoLZ4:
		c = lz4Codec{level: level}
	case AlgoGzip:
		c, err = newGzipCodec(level)
	default:
		err = fmt.Errorf("unknown compression algorithm %q", algo)
	}
	if err != nil {
		return nil, corerr.New(corerr.InvalidConfig, "compression stage", err)
	}

	return &Compression{algo: algo, level: level, order: order, c: c}, nil
}

func (c *Compression) Kind() Kind { return KindCompression }

func (c *Compression) Descriptor() Descriptor {
	return Descriptor{
		Kind:       KindCompression,
		Algorithm:  string(c.algo),
		Parameters: map[string]any{"level": c.level},
		Order:      c.order,
	}
}

func (c *Compression) Forward(in []byte, ctx *Context) ([]byte, error) {
	start := time.Now()
	out, err := c.c.compress(in)
	c.recordTiming(ctx, start)
	if err != nil {
		return nil, corerr.New(corerr.IoError, "compress", err)
	}
	return out, nil
}

func (c *Compression) Reverse(in []byte, ctx *Context) ([]byte, error) {
	start := time.Now()
	out, err := c.c.decompress(in)
	c.recordTiming(ctx, start)
	if err != nil {
		return nil, corerr.New(corerr.CorruptData, "decompress", err)
	}
	return out, nil
}

func (c *Compression) recordTiming(ctx *Context, start time.Time) {
	if ctx != nil && ctx.OnStageTimed != nil {
		ctx.OnStageTimed(string(KindCompression), string(c.algo), time.Since(start).Nanoseconds())
	}
}

// --- zstd ---

type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCodec(level int) (zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return zstdCodec{}, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return zstdCodec{}, fmt.Errorf("zstd decoder: %w", err)
	}
	return zstdCodec{encoder: enc, decoder: dec}, nil
}

func (z zstdCodec) compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (z zstdCodec) decompress(data []byte) ([]byte, error) {
	return z.decoder.DecodeAll(data, nil)
}

// --- gzip ---

type gzipCodec struct {
	level int
}

func newGzipCodec(level int) (gzipCodec, error) {
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		return gzipCodec{}, fmt.Errorf("gzip level %d: %w", level, err)
	}
	return gzipCodec{level: level}, nil
}

func (g gzipCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gzipCodec) decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// --- brotli ---

type brotliCodec struct {
	level int
}

func (b brotliCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, b.level)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b brotliCodec) decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}

// --- lz4 ---

type lz4Codec struct {
	level int
}

func (l lz4Codec) compress(data []byte) ([]byte, error) {
	// lz4.CompressionLevel is an enum of distinct values, not the integer
	// 1..9 itself, so the validated level selects the matching constant.
	levels := [...]lz4.CompressionLevel{lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(levels[l.level-1])); err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l lz4Codec) decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}
