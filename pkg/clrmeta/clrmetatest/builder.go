// Package clrmetatest builds small managed PE images for tests.
//
// Images contain the Module, TypeRef, TypeDef, Assembly and AssemblyRef
// tables with two-byte heap and table indexes, which is enough to exercise
// identity, reference and type decoding.
package clrmetatest

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// Resolution scope tags of a TypeRef.
const (
	ScopeAssemblyRef = 2
	ScopeTypeRef     = 3
)

const (
	tabModule      = 0x00
	tabTypeRef     = 0x01
	tabTypeDef     = 0x02
	tabAssembly    = 0x20
	tabAssemblyRef = 0x23
)

// Version is a four-part version.
type Version [4]uint16

// Builder accumulates metadata rows.
type Builder struct {
	strs   bytes.Buffer
	strIdx map[string]uint16
	blobs  bytes.Buffer

	module      [][]byte
	typeRefs    [][]byte
	typeDefs    [][]byte
	assembly    [][]byte
	assemblyRef [][]byte
}

// New returns an empty builder.
func New() *Builder {
	b := &Builder{strIdx: map[string]uint16{}}
	b.strs.WriteByte(0)
	b.blobs.WriteByte(0)
	return b
}

func (b *Builder) str(s string) uint16 {
	if s == "" {
		return 0
	}
	if i, ok := b.strIdx[s]; ok {
		return i
	}
	i := uint16(b.strs.Len())
	b.strs.WriteString(s)
	b.strs.WriteByte(0)
	b.strIdx[s] = i
	return i
}

func (b *Builder) blob(p []byte) uint16 {
	if len(p) == 0 {
		return 0
	}
	i := uint16(b.blobs.Len())
	b.blobs.WriteByte(byte(len(p)))
	b.blobs.Write(p)
	return i
}

func row(vals ...any) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// Module adds the module row.
func (b *Builder) Module(name string) *Builder {
	b.module = append(b.module, row(uint16(0), b.str(name), uint16(0), uint16(0), uint16(0)))
	return b
}

// TypeRef adds a TypeRef scoped to the one-based row of the AssemblyRef
// (ScopeAssemblyRef) or TypeRef (ScopeTypeRef) table.
func (b *Builder) TypeRef(scope, target uint16, ns, name string) *Builder {
	b.typeRefs = append(b.typeRefs, row(target<<2|scope, b.str(name), b.str(ns)))
	return b
}

// TypeDef adds a type definition.
func (b *Builder) TypeDef(flags uint32, ns, name string) *Builder {
	b.typeDefs = append(b.typeDefs, row(flags, b.str(name), b.str(ns), uint16(0), uint16(1), uint16(1)))
	return b
}

// Assembly adds the assembly identity row.
func (b *Builder) Assembly(name string, v Version, key []byte) *Builder {
	b.assembly = append(b.assembly, row(uint32(0x8004), v[0], v[1], v[2], v[3],
		uint32(0), b.blob(key), b.str(name), uint16(0)))
	return b
}

// AssemblyRef adds an assembly reference with a public key token.
func (b *Builder) AssemblyRef(name string, v Version, token []byte) *Builder {
	b.assemblyRef = append(b.assemblyRef, row(v[0], v[1], v[2], v[3],
		uint32(0), b.blob(token), b.str(name), uint16(0), uint16(0)))
	return b
}

func (b *Builder) tables() []byte {
	var t bytes.Buffer
	t.Write(make([]byte, 4))
	t.Write([]byte{2, 0, 0, 1})
	present := []struct {
		tab  int
		rows [][]byte
	}{
		{tabModule, b.module},
		{tabTypeRef, b.typeRefs},
		{tabTypeDef, b.typeDefs},
		{tabAssembly, b.assembly},
		{tabAssemblyRef, b.assemblyRef},
	}
	var valid uint64
	for _, p := range present {
		if len(p.rows) > 0 {
			valid |= 1 << uint(p.tab)
		}
	}
	_ = binary.Write(&t, binary.LittleEndian, valid)
	_ = binary.Write(&t, binary.LittleEndian, uint64(0))
	for _, p := range present {
		if len(p.rows) > 0 {
			_ = binary.Write(&t, binary.LittleEndian, uint32(len(p.rows)))
		}
	}
	for _, p := range present {
		for _, r := range p.rows {
			t.Write(r)
		}
	}
	return t.Bytes()
}

func pad4(n int) int { return (n + 3) &^ 3 }

// Metadata returns the metadata root.
func (b *Builder) Metadata() []byte {
	streams := []struct {
		name string
		data []byte
	}{
		{"#~", b.tables()},
		{"#Strings", b.strs.Bytes()},
		{"#Blob", b.blobs.Bytes()},
	}

	version := make([]byte, 12)
	copy(version, "v4.0.30319")

	hdrSize := 16 + len(version) + 4
	for _, s := range streams {
		hdrSize += 8 + pad4(len(s.name)+1)
	}

	var root bytes.Buffer
	_ = binary.Write(&root, binary.LittleEndian, uint32(0x424A5342))
	_ = binary.Write(&root, binary.LittleEndian, []uint16{1, 1})
	_ = binary.Write(&root, binary.LittleEndian, uint32(0))
	_ = binary.Write(&root, binary.LittleEndian, uint32(len(version)))
	root.Write(version)
	_ = binary.Write(&root, binary.LittleEndian, []uint16{0, uint16(len(streams))})

	off := hdrSize
	for _, s := range streams {
		_ = binary.Write(&root, binary.LittleEndian, []uint32{uint32(off), uint32(len(s.data))})
		name := make([]byte, pad4(len(s.name)+1))
		copy(name, s.name)
		root.Write(name)
		off += pad4(len(s.data))
	}
	for _, s := range streams {
		data := make([]byte, pad4(len(s.data)))
		copy(data, s.data)
		root.Write(data)
	}
	return root.Bytes()
}

// PE offsets used by the generated image.
const (
	lfanew     = 0x80
	sectionRVA = 0x2000
	rawOffset  = 0x200
	cliSize    = 72
	mdOffset   = 80

	// ComDirectoryOffset is the file offset of the CLI header data
	// directory entry.
	ComDirectoryOffset = lfanew + 4 + 20 + 96 + pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR*8
)

// PE wraps the metadata root in a single-section PE32 image with a CLI
// header.
func (b *Builder) PE() []byte {
	md := b.Metadata()

	section := make([]byte, mdOffset+len(md))
	binary.LittleEndian.PutUint32(section[0:], cliSize)
	binary.LittleEndian.PutUint16(section[4:], 2)
	binary.LittleEndian.PutUint16(section[6:], 5)
	binary.LittleEndian.PutUint32(section[8:], sectionRVA+mdOffset)
	binary.LittleEndian.PutUint32(section[12:], uint32(len(md)))
	binary.LittleEndian.PutUint32(section[16:], 1)
	copy(section[mdOffset:], md)
	rawSize := (len(section) + 0x1FF) &^ 0x1FF

	var img bytes.Buffer
	dos := make([]byte, lfanew)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], lfanew)
	img.Write(dos)
	img.WriteString("PE\x00\x00")

	oh := pe.OptionalHeader32{
		Magic:               0x10b,
		SectionAlignment:    0x2000,
		FileAlignment:       0x200,
		SizeOfImage:         0x4000,
		SizeOfHeaders:       rawOffset,
		NumberOfRvaAndSizes: 16,
	}
	oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR] = pe.DataDirectory{VirtualAddress: sectionRVA, Size: cliSize}

	fh := pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
		Characteristics:      0x2102,
	}
	sh := pe.SectionHeader32{
		VirtualSize:      uint32(len(section)),
		VirtualAddress:   sectionRVA,
		SizeOfRawData:    uint32(rawSize),
		PointerToRawData: rawOffset,
		Characteristics:  0x60000020,
	}
	copy(sh.Name[:], ".text")

	_ = binary.Write(&img, binary.LittleEndian, fh)
	_ = binary.Write(&img, binary.LittleEndian, oh)
	_ = binary.Write(&img, binary.LittleEndian, sh)
	img.Write(make([]byte, rawOffset-img.Len()))
	img.Write(section)
	img.Write(make([]byte, rawSize-len(section)))
	return img.Bytes()
}

// Simple returns a PE image for an assembly with the given name that
// references the named assemblies.
func Simple(name string, refs ...string) []byte {
	b := New().Module(name+".dll").Assembly(name, Version{1, 0, 0, 0}, nil)
	for _, r := range refs {
		b.AssemblyRef(r, Version{1, 0, 0, 0}, nil)
	}
	b.TypeDef(0, "", "<Module>").TypeDef(1, name, "Class1")
	return b.PE()
}
