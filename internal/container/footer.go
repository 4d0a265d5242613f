package container

import (
	"encoding/binary"
	"fmt"

	"github.com/hambosto/adapipe/internal/corerr"
)

// Magic identifies an ADAPIPE container. Exactly 8 bytes, ASCII
// "ADAPIPE" followed by a NUL (spec.md §4.6).
var Magic = [8]byte{'A', 'D', 'A', 'P', 'I', 'P', 'E', 0}

// trailerSize is the fixed number of bytes after the JSON header. The
// header bytes themselves are NOT included in this constant — it covers
// only the fixed-width tail that follows the header (spec.md §3's footer
// layout): header_len (4) + format_version (2) + magic (8).
const trailerSize = 4 + 2 + 8

// magicAndVersionSize is the "last 10 bytes" spec.md §4.6 refers to:
// format_version (2) + magic (8).
const magicAndVersionSize = 2 + 8

// EncodeFooter returns the header_len/format_version/magic trailer bytes
// that follow the JSON header in the output file (spec.md §4.6).
func EncodeFooter(headerLen uint32, version uint16) []byte {
	buf := make([]byte, trailerSize)
	binary.LittleEndian.PutUint32(buf[0:4], headerLen)
	binary.LittleEndian.PutUint16(buf[4:6], version)
	copy(buf[6:14], Magic[:])
	return buf
}

// ParsedFooter is the result of reverse-parsing a container's trailing
// bytes (spec.md §4.6 reader side).
type ParsedFooter struct {
	Version    uint16
	HeaderLen  uint32
	HeaderOff  int64 // byte offset where the JSON header begins
	ChunksSize int64 // byte length of the chunk region, [0, ChunksSize)
}

// ParseFooter validates the trailing magic+version and header_len fields
// found in tail, the last TailReadSize(fileSize) bytes of the container,
// and returns the parsed layout. fileSize is the total container size.
//
// State machine step: Unopened → FooterValidated (spec.md §4.6).
func ParseFooter(tail []byte, fileSize int64) (ParsedFooter, error) {
	if len(tail) < trailerSize {
		return ParsedFooter{}, corerr.New(corerr.InvalidFormat, "footer", fmt.Errorf("container too small to hold a footer"))
	}

	mv := tail[len(tail)-magicAndVersionSize:]
	version := binary.LittleEndian.Uint16(mv[0:2])
	var magic [8]byte
	copy(magic[:], mv[2:10])
	if magic != Magic {
		return ParsedFooter{}, corerr.New(corerr.InvalidFormat, "footer", fmt.Errorf("bad magic bytes"))
	}
	if !supportedVersions[version] {
		return ParsedFooter{}, corerr.New(corerr.InvalidFormat, "footer", fmt.Errorf("unsupported format_version %d", version))
	}

	headerLenBytes := tail[len(tail)-trailerSize : len(tail)-magicAndVersionSize]
	headerLen := binary.LittleEndian.Uint32(headerLenBytes)

	if int64(headerLen) > fileSize-trailerSize {
		return ParsedFooter{}, corerr.New(corerr.InvalidFormat, "footer", fmt.Errorf("header_len %d exceeds file bounds", headerLen))
	}

	headerOff := fileSize - trailerSize - int64(headerLen)
	if headerOff < 0 {
		return ParsedFooter{}, corerr.New(corerr.InvalidFormat, "footer", fmt.Errorf("negative header offset"))
	}

	return ParsedFooter{
		Version:    version,
		HeaderLen:  headerLen,
		HeaderOff:  headerOff,
		ChunksSize: headerOff,
	}, nil
}

// TailReadSize returns how many trailing bytes a caller should read to
// have enough to call ParseFooter (the fixed trailer; never more than
// the file itself).
func TailReadSize(fileSize int64) int64 {
	if fileSize < trailerSize {
		return fileSize
	}
	return trailerSize
}
