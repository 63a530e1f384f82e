package fmp4

import (
	"fmt"
	"github.com/Eyevinn/mp4ff/bits"
	"io"
)

// ReadFragment extracts the moof box at offset together with the mdat box
// that follows it. The result is the byte-exact moof||mdat pair.
func ReadFragment(r io.ReaderAt, size int64, offset uint64) ([]byte, error) {
	start := int64(offset)
	if start < 0 || start+boxHeaderSize > size {
		return nil, fmt.Errorf("%w: moof offset %d outside %d byte file", ErrBoxFormat, offset, size)
	}

	moof, err := readHeaderAt(r, start, "moof")
	if err != nil {
		return nil, err
	}
	mdatStart := start + int64(moof.Size)
	if mdatStart+boxHeaderSize > size {
		return nil, fmt.Errorf("%w: moof box at %d overruns file", ErrBoxFormat, offset)
	}
	mdat, err := readHeaderAt(r, mdatStart, "mdat")
	if err != nil {
		return nil, err
	}
	end := mdatStart + int64(mdat.Size)
	if end > size {
		return nil, fmt.Errorf("%w: mdat box at %d overruns file", ErrBoxFormat, mdatStart)
	}

	buf := make([]byte, end-start)
	if err := readFullAt(r, buf, start); err != nil {
		return nil, fmt.Errorf("reading fragment at %d: %w", offset, err)
	}
	return buf, nil
}

func readHeaderAt(r io.ReaderAt, off int64, want string) (boxHeader, error) {
	var hdr [boxHeaderSize]byte
	if err := readFullAt(r, hdr[:], off); err != nil {
		return boxHeader{}, fmt.Errorf("reading %s header at %d: %w", want, off, err)
	}
	return readBoxHeader(bits.NewFixedSliceReader(hdr[:]), want)
}

// readFullAt fills p from off, accepting io.EOF when the read reached the end exactly.
func readFullAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
