package container

import (
	"io"
	"os"

	"github.com/hambosto/adapipe/internal/corerr"
)

// ReadHeader opens path, parses its footer, and decodes its trailing
// header without touching the chunk region. Callers that need header
// fields (e.g. a key provider's stored KDF parameters) before committing
// to a full restore use this instead of duplicating footer/header
// parsing themselves.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, corerr.New(corerr.IoError, "open container", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Header{}, corerr.New(corerr.IoError, "stat container", err)
	}
	fileSize := info.Size()

	tailSize := TailReadSize(fileSize)
	if _, err := f.Seek(fileSize-tailSize, io.SeekStart); err != nil {
		return Header{}, corerr.New(corerr.IoError, "seek footer", err)
	}
	tail := make([]byte, tailSize)
	if _, err := io.ReadFull(f, tail); err != nil {
		return Header{}, corerr.New(corerr.IoError, "read footer", err)
	}
	footer, err := ParseFooter(tail, fileSize)
	if err != nil {
		return Header{}, err
	}

	if _, err := f.Seek(footer.HeaderOff, io.SeekStart); err != nil {
		return Header{}, corerr.New(corerr.IoError, "seek header", err)
	}
	headerBytes := make([]byte, footer.HeaderLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return Header{}, corerr.New(corerr.IoError, "read header", err)
	}
	return UnmarshalHeader(headerBytes)
}
