// Package fmp4test builds synthetic fragmented track files for tests.
package fmp4test

import (
	"bytes"
	"encoding/binary"
)

// Entry describes one fragment of a synthetic track.
type Entry struct {
	StartTime uint64
	// Payload becomes the body of the fragment's mdat box.
	Payload []byte
}

// Options controls the tfra layout of a synthetic track.
type Options struct {
	TrackID uint32
	// Version selects 32-bit (0) or 64-bit (1) time and offset fields.
	Version byte
	// LengthSizes is the packed length_size_of_* byte. Zero means one byte per field.
	LengthSizes byte
}

// Track is a synthetic track file and the byte ranges of its fragments.
type Track struct {
	Data []byte
	// Offsets maps start time to moof offset.
	Offsets map[uint64]uint64
	// Fragments maps start time to the exact moof||mdat bytes.
	Fragments map[uint64][]byte
}

// Build lays out a free box, one moof/mdat pair per entry and a closing mfra.
func Build(opts Options, entries []Entry) Track {
	var buf bytes.Buffer
	t := Track{
		Offsets:   make(map[uint64]uint64, len(entries)),
		Fragments: make(map[uint64][]byte, len(entries)),
	}

	writeBox(&buf, "free", []byte("smoothstreamd"))
	for i, e := range entries {
		offset := uint64(buf.Len())
		mfhd := make([]byte, 8)
		binary.BigEndian.PutUint32(mfhd[4:], uint32(i+1))
		var moof bytes.Buffer
		writeBox(&moof, "mfhd", mfhd)
		start := buf.Len()
		writeBox(&buf, "moof", moof.Bytes())
		writeBox(&buf, "mdat", e.Payload)
		t.Offsets[e.StartTime] = offset
		t.Fragments[e.StartTime] = append([]byte(nil), buf.Bytes()[start:]...)
	}

	trafW := int((opts.LengthSizes&0x3F)>>4) + 1
	trunW := int((opts.LengthSizes&0x0C)>>2) + 1
	sampleW := int(opts.LengthSizes&0x03) + 1

	var tfra bytes.Buffer
	tfra.Write([]byte{opts.Version, 0, 0, 0})
	put32(&tfra, opts.TrackID)
	put32(&tfra, uint32(opts.LengthSizes))
	put32(&tfra, uint32(len(entries)))
	for i, e := range entries {
		if opts.Version == 1 {
			put64(&tfra, e.StartTime)
			put64(&tfra, t.Offsets[e.StartTime])
		} else {
			put32(&tfra, uint32(e.StartTime))
			put32(&tfra, uint32(t.Offsets[e.StartTime]))
		}
		putN(&tfra, 1, trafW)
		putN(&tfra, 1, trunW)
		putN(&tfra, uint32(i+1), sampleW)
	}

	var mfra bytes.Buffer
	writeBox(&mfra, "tfra", tfra.Bytes())
	mfraSize := uint32(8 + mfra.Len() + 16)
	mfro := make([]byte, 8)
	binary.BigEndian.PutUint32(mfro[4:], mfraSize)
	writeBox(&mfra, "mfro", mfro)
	writeBox(&buf, "mfra", mfra.Bytes())

	t.Data = buf.Bytes()
	return t
}

func writeBox(buf *bytes.Buffer, typ string, body []byte) {
	put32(buf, uint32(8+len(body)))
	buf.WriteString(typ)
	buf.Write(body)
}

func put32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func put64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putN(buf *bytes.Buffer, v uint32, n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[4-n:])
}
