package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	"github.com/ticketguard/scoring/internal/errs"
)

// The on-disk format is:
//   - 4 bytes: magic "TGSM"
//   - 1 byte: format version
//   - 8 bytes: murmur3 sum64 of the body (big-endian)
//   - remaining: snappy-compressed JSON of the Artifact
const (
	formatVersion byte = 1
	headerSize         = 4 + 1 + 8
)

var magic = []byte("TGSM")

// Encode serialises a validated artifact and records its fingerprint.
func Encode(a *Artifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "refusing to encode invalid artifact", err)
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	body := snappy.Encode(nil, raw)

	buf := make([]byte, headerSize, headerSize+len(body))
	copy(buf, magic)
	buf[4] = formatVersion
	binary.BigEndian.PutUint64(buf[5:headerSize], murmur3.Sum64(body))
	buf = append(buf, body...)

	a.fingerprint = fingerprint(raw)
	return buf, nil
}

// Decode parses and validates an encoded artifact. Every failure is an
// ArtifactCorrupt error.
func Decode(data []byte) (*Artifact, error) {
	if len(data) < headerSize {
		return nil, corrupt("file is %d bytes, shorter than the header", nil, len(data))
	}
	if !bytes.Equal(data[:4], magic) {
		return nil, corrupt("bad magic %q", nil, data[:4])
	}
	if data[4] != formatVersion {
		return nil, corrupt("unsupported format version %d", nil, data[4])
	}
	body := data[headerSize:]
	if want, got := binary.BigEndian.Uint64(data[5:headerSize]), murmur3.Sum64(body); want != got {
		return nil, corrupt("checksum mismatch: header %016x, body %016x", nil, want, got)
	}
	raw, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, corrupt("decompress body", err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, corrupt("decode body", err)
	}
	if err := a.Validate(); err != nil {
		return nil, corrupt("invalid artifact", err)
	}
	a.fingerprint = fingerprint(raw)
	return &a, nil
}

func fingerprint(raw []byte) string {
	hi, lo := murmur3.Sum128(raw)
	return fmt.Sprintf("%016x%016x", hi, lo)
}

func corrupt(format string, cause error, args ...any) error {
	return errs.Wrap(errs.CodeArtifactCorrupt, fmt.Sprintf(format, args...), cause)
}
