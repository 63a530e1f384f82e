package fmp4

import (
	"fmt"
	"github.com/Eyevinn/mp4ff/bits"
	"io"
	"smoothstreamd/internal/models"
)

const (
	// mfroBoxSize is the fixed size of the mfro box closing a fragmented file.
	mfroBoxSize = 16
	// tfraFixedSize counts the tfra fields preceding its entries, header included.
	tfraFixedSize = 8 + 4 + 4 + 4 + 4
)

// ParseIndex builds the random-access index of a fragmented track file from
// its trailing mfra box. size is the total length of the file behind r.
func ParseIndex(r io.ReaderAt, size int64) (*models.Track, error) {
	if size < 4 {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrBoxFormat, size)
	}
	var tail [4]byte
	if err := readFullAt(r, tail[:], size-4); err != nil {
		return nil, fmt.Errorf("reading mfro size: %w", err)
	}
	mfraSize := int64(bits.NewFixedSliceReader(tail[:]).ReadUint32())
	if mfraSize < boxHeaderSize+tfraFixedSize || mfraSize > size {
		return nil, fmt.Errorf("%w: mfra size %d out of range for %d byte file", ErrBoxFormat, mfraSize, size)
	}

	// Both headers are checked before the body is allocated.
	mfraStart := size - mfraSize
	mfra, err := readHeaderAt(r, mfraStart, "mfra")
	if err != nil {
		return nil, err
	}
	if int64(mfra.Size) != mfraSize {
		return nil, fmt.Errorf("%w: mfra size %d does not match mfro size %d", ErrBoxFormat, mfra.Size, mfraSize)
	}
	tfra, err := readHeaderAt(r, mfraStart+boxHeaderSize, "tfra")
	if err != nil {
		return nil, err
	}
	if int64(tfra.Size) < tfraFixedSize || int64(tfra.Size) > mfraSize-boxHeaderSize-mfroBoxSize {
		return nil, fmt.Errorf("%w: tfra size %d does not fit mfra size %d", ErrBoxFormat, tfra.Size, mfraSize)
	}

	buf := make([]byte, mfraSize)
	if err := readFullAt(r, buf, mfraStart); err != nil {
		return nil, fmt.Errorf("reading mfra box: %w", err)
	}
	return parseMfra(buf, size)
}

func parseMfra(buf []byte, fileSize int64) (*models.Track, error) {
	sr := bits.NewFixedSliceReader(buf)
	mfra, err := readBoxHeader(sr, "mfra")
	if err != nil {
		return nil, err
	}
	if int(mfra.Size) != len(buf) {
		return nil, fmt.Errorf("%w: mfra size %d does not match mfro size %d", ErrBoxFormat, mfra.Size, len(buf))
	}
	if _, err := readBoxHeader(sr, "tfra"); err != nil {
		return nil, err
	}

	version := sr.ReadUint8()
	sr.SkipBytes(3) // flags
	trackID := sr.ReadUint32()
	packed := sr.ReadUint32()
	trafWidth, trunWidth, sampleWidth := fieldWidths(byte(packed))
	count := sr.ReadUint32()
	if err := sr.AccError(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBoxFormat, err)
	}

	entrySize := trafWidth + trunWidth + sampleWidth + 8
	if version == 1 {
		entrySize += 8
	}
	if uint64(count)*uint64(entrySize) > uint64(sr.NrRemainingBytes()) {
		return nil, fmt.Errorf("%w: %d tfra entries do not fit in %d bytes", ErrBoxFormat, count, sr.NrRemainingBytes())
	}

	fragments := make([]models.Fragment, 0, count)
	for i := uint32(0); i < count; i++ {
		var f models.Fragment
		if version == 1 {
			f.StartTime = sr.ReadUint64()
			f.MoofOffset = sr.ReadUint64()
		} else {
			f.StartTime = uint64(sr.ReadUint32())
			f.MoofOffset = uint64(sr.ReadUint32())
		}
		f.TrafNumber = readUintN(sr, trafWidth)
		f.TrunNumber = readUintN(sr, trunWidth)
		f.SampleNumber = readUintN(sr, sampleWidth)
		if f.MoofOffset >= uint64(fileSize) {
			return nil, fmt.Errorf("%w: entry %d moof offset %d beyond end of file", ErrBoxFormat, i, f.MoofOffset)
		}
		fragments = append(fragments, f)
	}
	if err := sr.AccError(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBoxFormat, err)
	}
	return models.NewTrack(trackID, fragments), nil
}

// fieldWidths decodes the tfra length_size_of_* bit fields from the low byte of the packed word.
func fieldWidths(b byte) (traf, trun, sample int) {
	traf = int((b&0x3F)>>4) + 1
	trun = int((b&0x0C)>>2) + 1
	sample = int(b&0x03) + 1
	return traf, trun, sample
}

// readUintN reads an n-byte big-endian unsigned integer, 1 <= n <= 4.
func readUintN(sr *bits.FixedSliceReader, n int) uint32 {
	var v uint32
	for _, b := range sr.ReadBytes(n) {
		v = v<<8 | uint32(b)
	}
	return v
}
