package clrmeta

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxMetadataSize bounds the metadata blob read from an image.
const maxMetadataSize = 256 << 20

var (
	// ErrNotManaged is returned for PE images without a CLI header.
	ErrNotManaged = errors.New("clrmeta: image has no CLI header")

	// ErrMalformed is returned when metadata structures are truncated or
	// inconsistent.
	ErrMalformed = errors.New("clrmeta: malformed metadata")
)

// ReadBytes reads the assembly definition from an in-memory PE image.
func ReadBytes(data []byte) (*Assembly, error) {
	return Read(bytes.NewReader(data))
}

// Read reads the assembly definition from a PE image.
func Read(r io.ReaderAt) (*Assembly, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("clrmeta: read pe: %w", err)
	}
	defer f.Close()

	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes <= pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR {
			return nil, ErrNotManaged
		}
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR]
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes <= pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR {
			return nil, ErrNotManaged
		}
		dir = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR]
	default:
		return nil, ErrNotManaged
	}
	if dir.VirtualAddress == 0 || dir.Size < 16 {
		return nil, ErrNotManaged
	}

	hdr, err := readRVA(f, dir.VirtualAddress, 16)
	if err != nil {
		return nil, err
	}
	mdRVA := binary.LittleEndian.Uint32(hdr[8:])
	mdSize := binary.LittleEndian.Uint32(hdr[12:])
	if mdSize == 0 || mdSize > maxMetadataSize {
		return nil, fmt.Errorf("%w: metadata size %d", ErrMalformed, mdSize)
	}

	md, err := readRVA(f, mdRVA, mdSize)
	if err != nil {
		return nil, err
	}
	return ReadMetadata(md)
}

// readRVA reads size bytes at a relative virtual address by locating the
// section that maps it.
func readRVA(f *pe.File, rva, size uint32) ([]byte, error) {
	for _, s := range f.Sections {
		span := s.VirtualSize
		if s.Size > span {
			span = s.Size
		}
		if rva < s.VirtualAddress || rva >= s.VirtualAddress+span {
			continue
		}
		off := rva - s.VirtualAddress
		if uint64(off)+uint64(size) > uint64(s.Size) {
			return nil, fmt.Errorf("%w: rva %#x+%d past section %s", ErrMalformed, rva, size, s.Name)
		}
		buf := make([]byte, size)
		if _, err := s.ReadAt(buf, int64(off)); err != nil {
			return nil, fmt.Errorf("clrmeta: read section %s: %w", s.Name, err)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: rva %#x not mapped", ErrMalformed, rva)
}
