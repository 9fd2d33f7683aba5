package clrmeta

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

const metadataSignature = 0x424A5342 // "BSJB"

// maxScopeDepth bounds nested TypeRef scope chains.
const maxScopeDepth = 32

type heaps struct {
	strings []byte
	blobs   []byte
}

// ReadMetadata decodes a metadata root, as found at the CLI header's
// metadata directory, into an assembly definition.
func ReadMetadata(md []byte) (asm *Assembly, err error) {
	defer func() {
		// Index arithmetic on hostile input is bounds-checked by the runtime;
		// surface it as malformed metadata.
		if r := recover(); r != nil {
			asm, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	if len(md) < 16 || binary.LittleEndian.Uint32(md) != metadataSignature {
		return nil, fmt.Errorf("%w: bad signature", ErrMalformed)
	}
	vlen := int(binary.LittleEndian.Uint32(md[12:]))
	off := 16 + vlen
	if vlen < 0 || off+4 > len(md) {
		return nil, fmt.Errorf("%w: version length %d", ErrMalformed, vlen)
	}
	rtVersion := strings.TrimRight(string(md[16:off]), "\x00")
	nstreams := int(binary.LittleEndian.Uint16(md[off+2:]))
	off += 4

	streams := make(map[string][]byte, nstreams)
	for i := 0; i < nstreams; i++ {
		if off+8 > len(md) {
			return nil, fmt.Errorf("%w: stream header %d", ErrMalformed, i)
		}
		so := binary.LittleEndian.Uint32(md[off:])
		ss := binary.LittleEndian.Uint32(md[off+4:])
		off += 8
		end := bytes.IndexByte(md[off:], 0)
		if end < 0 {
			return nil, fmt.Errorf("%w: stream name %d", ErrMalformed, i)
		}
		name := string(md[off : off+end])
		off += (end + 4) &^ 3
		if uint64(so)+uint64(ss) > uint64(len(md)) {
			return nil, fmt.Errorf("%w: stream %s out of range", ErrMalformed, name)
		}
		streams[name] = md[so : so+ss]
	}

	tstream, ok := streams["#~"]
	if !ok {
		tstream, ok = streams["#-"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: no tables stream", ErrMalformed)
	}
	tabs, err := parseTables(tstream)
	if err != nil {
		return nil, err
	}
	h := heaps{strings: streams["#Strings"], blobs: streams["#Blob"]}

	asm = &Assembly{RuntimeVersion: rtVersion}
	if tabs.count(tabModule) > 0 {
		asm.Module = h.str(tabs.cell(tabModule, 0, 1))
	}
	if tabs.count(tabAssembly) > 0 {
		asm.Version = Version{
			Major:    uint16(tabs.cell(tabAssembly, 0, 1)),
			Minor:    uint16(tabs.cell(tabAssembly, 0, 2)),
			Build:    uint16(tabs.cell(tabAssembly, 0, 3)),
			Revision: uint16(tabs.cell(tabAssembly, 0, 4)),
		}
		if key := h.blob(tabs.cell(tabAssembly, 0, 6)); len(key) > 0 {
			asm.PublicKeyToken = keyToken(key)
		}
		asm.Name = h.str(tabs.cell(tabAssembly, 0, 7))
		asm.Culture = h.str(tabs.cell(tabAssembly, 0, 8))
	}

	asm.References = make([]Reference, 0, tabs.count(tabAssemblyRef))
	for i := 0; i < tabs.count(tabAssemblyRef); i++ {
		ref := Reference{
			Version: Version{
				Major:    uint16(tabs.cell(tabAssemblyRef, i, 0)),
				Minor:    uint16(tabs.cell(tabAssemblyRef, i, 1)),
				Build:    uint16(tabs.cell(tabAssemblyRef, i, 2)),
				Revision: uint16(tabs.cell(tabAssemblyRef, i, 3)),
			},
			Name:    h.str(tabs.cell(tabAssemblyRef, i, 6)),
			Culture: h.str(tabs.cell(tabAssemblyRef, i, 7)),
		}
		flags := tabs.cell(tabAssemblyRef, i, 4)
		if tok := h.blob(tabs.cell(tabAssemblyRef, i, 5)); len(tok) > 0 {
			if flags&0x1 != 0 {
				ref.PublicKeyToken = keyToken(tok)
			} else {
				ref.PublicKeyToken = hex.EncodeToString(tok)
			}
		}
		asm.References = append(asm.References, ref)
	}

	asm.Types = make([]Type, 0, tabs.count(tabTypeDef))
	for i := 0; i < tabs.count(tabTypeDef); i++ {
		name := h.str(tabs.cell(tabTypeDef, i, 1))
		if name == "<Module>" {
			continue
		}
		asm.Types = append(asm.Types, Type{
			Flags:     tabs.cell(tabTypeDef, i, 0),
			Name:      name,
			Namespace: h.str(tabs.cell(tabTypeDef, i, 2)),
		})
	}

	asm.TypeRefs = make([]TypeRef, 0, tabs.count(tabTypeRef))
	for i := 0; i < tabs.count(tabTypeRef); i++ {
		asm.TypeRefs = append(asm.TypeRefs, TypeRef{
			Name:      h.str(tabs.cell(tabTypeRef, i, 1)),
			Namespace: h.str(tabs.cell(tabTypeRef, i, 2)),
			Assembly:  typeRefAssembly(tabs, asm.References, i),
		})
	}
	return asm, nil
}

// typeRefAssembly follows a TypeRef's resolution scope (through enclosing
// TypeRefs for nested types) to the referenced assembly name.
func typeRefAssembly(tabs *tableSet, refs []Reference, row int) string {
	for depth := 0; depth < maxScopeDepth; depth++ {
		tag, target := decodeCoded(resolutionScope, tabs.cell(tabTypeRef, row, 0))
		switch {
		case target == 0:
			return ""
		case tag == scopeAssemblyRef && int(target) <= len(refs):
			return refs[target-1].Name
		case tag == scopeTypeRef && int(target) <= tabs.count(tabTypeRef):
			row = int(target) - 1
		default:
			return ""
		}
	}
	return ""
}

func (h heaps) str(i uint32) string {
	if int(i) >= len(h.strings) {
		return ""
	}
	s := h.strings[i:]
	if end := bytes.IndexByte(s, 0); end >= 0 {
		s = s[:end]
	}
	return string(s)
}

// blob reads a length-prefixed blob using the compressed unsigned integer
// length encoding.
func (h heaps) blob(i uint32) []byte {
	b := h.blobs
	if int(i) >= len(b) {
		return nil
	}
	b = b[i:]
	var n, hdr int
	switch {
	case b[0]&0x80 == 0:
		n, hdr = int(b[0]), 1
	case b[0]&0xC0 == 0x80 && len(b) >= 2:
		n, hdr = int(b[0]&0x3F)<<8|int(b[1]), 2
	case b[0]&0xE0 == 0xC0 && len(b) >= 4:
		n, hdr = int(b[0]&0x1F)<<24|int(b[1])<<16|int(b[2])<<8|int(b[3]), 4
	default:
		return nil
	}
	if hdr+n > len(b) {
		return nil
	}
	return b[hdr : hdr+n]
}

// keyToken derives the 8-byte public key token: the last eight bytes of the
// SHA-1 of the key, reversed.
func keyToken(key []byte) string {
	sum := sha1.Sum(key)
	tok := make([]byte, 8)
	for i := 0; i < 8; i++ {
		tok[i] = sum[len(sum)-1-i]
	}
	return hex.EncodeToString(tok)
}
