package metadata

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hybridann/hybridann/core"
)

// WriteTo serializes the metadata stream: a uvarint slot count, then for
// each slot a uvarint payload length followed by the payload bytes,
// mirroring the teacher's length-prefixed uvarint framing in
// metadata/binary.go (MarshalMetadataMap) but over a flat []byte payload
// instead of a typed Document.
func (s *MemStore) WriteTo(w io.Writer) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var written int64
	header := binary.AppendUvarint(nil, uint64(len(s.payloads)))
	n, err := w.Write(header)
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("metadata: write header: %w", err)
	}

	lenBuf := make([]byte, 0, 10)
	for i, p := range s.payloads {
		lenBuf = binary.AppendUvarint(lenBuf[:0], uint64(len(p)))
		n, err = w.Write(lenBuf)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("metadata: write slot %d length: %w", i, err)
		}
		if len(p) == 0 {
			continue
		}
		n, err = w.Write(p)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("metadata: write slot %d payload: %w", i, err)
		}
	}
	return written, nil
}

// ReadFrom replaces s's contents with the metadata stream produced by
// WriteTo. The inverse index, if enabled, is rebuilt from the loaded
// payloads.
func (s *MemStore) ReadFrom(r io.Reader) (int64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}

	var read int64
	count, err := readUvarintCounting(br, &read)
	if err != nil {
		return read, fmt.Errorf("metadata: read header: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.payloads = make([][]byte, count)
	if s.inverse != nil {
		s.inverse = make(map[string]core.VID, count)
	}

	for i := uint64(0); i < count; i++ {
		plen, err := readUvarintCounting(br, &read)
		if err != nil {
			return read, fmt.Errorf("metadata: read slot %d length: %w", i, err)
		}
		if plen == 0 {
			continue
		}
		buf := make([]byte, plen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return read, fmt.Errorf("metadata: read slot %d payload: %w", i, err)
		}
		read += int64(plen)
		s.payloads[i] = buf
		if s.inverse != nil {
			s.inverse[string(buf)] = core.VID(i)
		}
	}
	return read, nil
}

func readUvarintCounting(br io.ByteReader, read *int64) (uint64, error) {
	v, err := binary.ReadUvarint(br)
	// binary.ReadUvarint does not report how many bytes it consumed, so
	// callers that need an exact byte count re-encode the value; this is
	// only used for bookkeeping in the returned byte count, never to
	// re-parse the stream.
	if err == nil {
		*read += int64(len(binary.AppendUvarint(nil, v)))
	}
	return v, err
}

type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	_, err := io.ReadFull(b.r, b.buf[:])
	return b.buf[0], err
}
