package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hambosto/adapipe/internal/corerr"
	"github.com/hambosto/adapipe/internal/stage"
)

// lengthPrefixSize is the width of the data_len field in a chunk frame
// (spec.md §3: "data_len: u32 LE").
const lengthPrefixSize = 4

// FrameCodec knows whether the pipeline's final user stage is an AEAD
// encryption stage and, if so, its nonce length, so it can split the
// nonce prefix out of the stage's output into the frame's own nonce
// field (SPEC_FULL.md §13.4) rather than storing it inside data.
type FrameCodec struct {
	nonceLen int // 0 when the final stage is not AEAD
}

// NewFrameCodec derives a FrameCodec from a pipeline's final user stage.
func NewFrameCodec(finalStage stage.Stage, ok bool) (FrameCodec, error) {
	if !ok || finalStage.Kind() != stage.KindEncryption {
		return FrameCodec{}, nil
	}
	d := finalStage.Descriptor()
	n, err := stage.NonceLen(stage.EncryptionAlgorithm(d.Algorithm))
	if err != nil {
		return FrameCodec{}, corerr.New(corerr.InvalidConfig, "frame codec", err)
	}
	return FrameCodec{nonceLen: n}, nil
}

// WriteFrame writes one chunk frame to w: an optional nonce prefix (split
// out of stageOutput when the codec is AEAD-aware), then data_len, then
// the remaining data bytes (spec.md §3).
func (c FrameCodec) WriteFrame(w io.Writer, stageOutput []byte) (int64, error) {
	nonce, data := c.split(stageOutput)

	var written int64
	if len(nonce) > 0 {
		n, err := w.Write(nonce)
		written += int64(n)
		if err != nil {
			return written, corerr.New(corerr.IoError, "write frame nonce", err)
		}
	}

	if len(data) > math.MaxUint32 {
		return written, corerr.New(corerr.InvalidConfig, "write frame", fmt.Errorf("chunk data length %d exceeds u32", len(data)))
	}
	var lenBuf [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	n, err := w.Write(lenBuf[:])
	written += int64(n)
	if err != nil {
		return written, corerr.New(corerr.IoError, "write frame length", err)
	}

	n, err = w.Write(data)
	written += int64(n)
	if err != nil {
		return written, corerr.New(corerr.IoError, "write frame data", err)
	}
	return written, nil
}

// ReadFrame reads one chunk frame from r and reassembles it into the
// nonce‖data form the stage chain expects (the reverse of the split
// WriteFrame performs).
func (c FrameCodec) ReadFrame(r io.Reader) ([]byte, error) {
	var nonce []byte
	if c.nonceLen > 0 {
		nonce = make([]byte, c.nonceLen)
		if _, err := io.ReadFull(r, nonce); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, corerr.New(corerr.CorruptData, "read frame nonce", err)
		}
	}

	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF && nonce == nil {
			return nil, io.EOF
		}
		return nil, corerr.New(corerr.CorruptData, "read frame length", err)
	}
	dataLen := binary.LittleEndian.Uint32(lenBuf[:])

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, corerr.New(corerr.CorruptData, "read frame data", err)
	}

	if nonce == nil {
		return data, nil
	}
	out := make([]byte, 0, len(nonce)+len(data))
	out = append(out, nonce...)
	out = append(out, data...)
	return out, nil
}

func (c FrameCodec) split(stageOutput []byte) (nonce, data []byte) {
	if c.nonceLen == 0 || len(stageOutput) < c.nonceLen {
		return nil, stageOutput
	}
	return stageOutput[:c.nonceLen], stageOutput[c.nonceLen:]
}
