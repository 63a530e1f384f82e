// Package fmp4 reads and writes the handful of fragmented-MP4 boxes a
// Smooth-Streaming track needs: the mfra/tfra trailer index, moof/mdat
// fragment framing and the mdat header of caption fragments.
package fmp4

import (
	"errors"
	"fmt"
	"github.com/Eyevinn/mp4ff/bits"
)

// ErrBoxFormat reports a size or magic mismatch in box framing.
// Callers treat it as "artifact absent" rather than a fatal condition.
var ErrBoxFormat = errors.New("fmp4: malformed box")

const boxHeaderSize = 8

// boxHeader is the compact (32-bit size) form of an ISO-BMFF box header.
type boxHeader struct {
	Size uint32
	Type string
}

// readBoxHeader reads a box header and checks that its type is want.
func readBoxHeader(r *bits.FixedSliceReader, want string) (boxHeader, error) {
	if r.NrRemainingBytes() < boxHeaderSize {
		return boxHeader{}, fmt.Errorf("%w: short %s header", ErrBoxFormat, want)
	}
	h := boxHeader{Size: r.ReadUint32(), Type: r.ReadFixedLengthString(4)}
	if err := r.AccError(); err != nil {
		return boxHeader{}, fmt.Errorf("%w: %v", ErrBoxFormat, err)
	}
	if h.Type != want {
		return boxHeader{}, fmt.Errorf("%w: expected %q box, found %q", ErrBoxFormat, want, h.Type)
	}
	if h.Size < boxHeaderSize {
		return boxHeader{}, fmt.Errorf("%w: %s box size %d", ErrBoxFormat, want, h.Size)
	}
	return h, nil
}

// EncodeMdat wraps payload in an mdat box with a freshly computed size.
func EncodeMdat(payload []byte) []byte {
	w := bits.NewFixedSliceWriter(boxHeaderSize + len(payload))
	w.WriteUint32(uint32(boxHeaderSize + len(payload)))
	w.WriteString("mdat", false)
	w.WriteBytes(payload)
	return w.Bytes()
}

// DecodeMdat returns the payload of a single mdat box.
func DecodeMdat(box []byte) ([]byte, error) {
	r := bits.NewFixedSliceReader(box)
	h, err := readBoxHeader(r, "mdat")
	if err != nil {
		return nil, err
	}
	if int(h.Size) > len(box) {
		return nil, fmt.Errorf("%w: mdat size %d exceeds %d available bytes", ErrBoxFormat, h.Size, len(box))
	}
	return box[boxHeaderSize:h.Size], nil
}

// Fragment is a moof/mdat pair split into its parts.
type Fragment struct {
	// Moof is the complete moof box, header included. It is passed through untouched.
	Moof []byte
	// Payload is the mdat body without its 8-byte header.
	Payload []byte
	// Trailer holds any bytes that followed the mdat box.
	Trailer []byte
}

// SplitFragment splits a moof||mdat payload into its moof box and mdat body.
func SplitFragment(data []byte) (Fragment, error) {
	r := bits.NewFixedSliceReader(data)
	moof, err := readBoxHeader(r, "moof")
	if err != nil {
		return Fragment{}, err
	}
	if int(moof.Size)+boxHeaderSize > len(data) {
		return Fragment{}, fmt.Errorf("%w: moof size %d leaves no room for mdat", ErrBoxFormat, moof.Size)
	}
	payload, err := DecodeMdat(data[moof.Size:])
	if err != nil {
		return Fragment{}, err
	}
	end := int(moof.Size) + boxHeaderSize + len(payload)
	return Fragment{
		Moof:    data[:moof.Size],
		Payload: payload,
		Trailer: data[end:],
	}, nil
}

// Bytes reassembles the fragment, recomputing the mdat header for the current payload.
func (f Fragment) Bytes() []byte {
	mdat := EncodeMdat(f.Payload)
	out := make([]byte, 0, len(f.Moof)+len(mdat)+len(f.Trailer))
	out = append(out, f.Moof...)
	out = append(out, mdat...)
	return append(out, f.Trailer...)
}

// ReplacePayload swaps the mdat body of a moof||mdat payload using fn.
// The moof box is carried over byte for byte.
func ReplacePayload(data []byte, fn func([]byte) []byte) ([]byte, error) {
	frag, err := SplitFragment(data)
	if err != nil {
		return nil, err
	}
	frag.Payload = fn(frag.Payload)
	return frag.Bytes(), nil
}
