package clrmeta

import "encoding/binary"

// Metadata table numbers.
const (
	tabModule                 = 0x00
	tabTypeRef                = 0x01
	tabTypeDef                = 0x02
	tabFieldPtr               = 0x03
	tabField                  = 0x04
	tabMethodPtr              = 0x05
	tabMethodDef              = 0x06
	tabParamPtr               = 0x07
	tabParam                  = 0x08
	tabInterfaceImpl          = 0x09
	tabMemberRef              = 0x0A
	tabConstant               = 0x0B
	tabCustomAttribute        = 0x0C
	tabFieldMarshal           = 0x0D
	tabDeclSecurity           = 0x0E
	tabClassLayout            = 0x0F
	tabFieldLayout            = 0x10
	tabStandAloneSig          = 0x11
	tabEventMap               = 0x12
	tabEventPtr               = 0x13
	tabEvent                  = 0x14
	tabPropertyMap            = 0x15
	tabPropertyPtr            = 0x16
	tabProperty               = 0x17
	tabMethodSemantics        = 0x18
	tabMethodImpl             = 0x19
	tabModuleRef              = 0x1A
	tabTypeSpec               = 0x1B
	tabImplMap                = 0x1C
	tabFieldRVA               = 0x1D
	tabEncLog                 = 0x1E
	tabEncMap                 = 0x1F
	tabAssembly               = 0x20
	tabAssemblyProcessor      = 0x21
	tabAssemblyOS             = 0x22
	tabAssemblyRef            = 0x23
	tabFile                   = 0x26
	tabExportedType           = 0x27
	tabManifestResource       = 0x28
	tabNestedClass            = 0x29
	tabGenericParam           = 0x2A
	tabMethodSpec             = 0x2B
	tabGenericParamConstraint = 0x2C

	// lastReadTable is the highest table whose rows are decoded. Tables are
	// stored in order, so nothing after it has to be sized.
	lastReadTable = tabAssemblyRef
)

const unused = -1

// codedIndex describes a coded index: tag width and the tables the tag
// selects, in tag order.
type codedIndex struct {
	bits   uint
	tables []int
}

var (
	typeDefOrRef     = codedIndex{2, []int{tabTypeDef, tabTypeRef, tabTypeSpec}}
	hasConstant      = codedIndex{2, []int{tabField, tabParam, tabProperty}}
	hasCustomAttrib  = codedIndex{5, []int{tabMethodDef, tabField, tabTypeRef, tabTypeDef, tabParam, tabInterfaceImpl, tabMemberRef, tabModule, tabDeclSecurity, tabProperty, tabEvent, tabStandAloneSig, tabModuleRef, tabTypeSpec, tabAssembly, tabAssemblyRef, tabFile, tabExportedType, tabManifestResource, tabGenericParam, tabGenericParamConstraint, tabMethodSpec}}
	hasFieldMarshal  = codedIndex{1, []int{tabField, tabParam}}
	hasDeclSecurity  = codedIndex{2, []int{tabTypeDef, tabMethodDef, tabAssembly}}
	memberRefParent  = codedIndex{3, []int{tabTypeDef, tabTypeRef, tabModuleRef, tabMethodDef, tabTypeSpec}}
	hasSemantics     = codedIndex{1, []int{tabEvent, tabProperty}}
	methodDefOrRef   = codedIndex{1, []int{tabMethodDef, tabMemberRef}}
	memberForwarded  = codedIndex{1, []int{tabField, tabMethodDef}}
	customAttribType = codedIndex{3, []int{unused, unused, tabMethodDef, tabMemberRef, unused}}
	resolutionScope  = codedIndex{2, []int{tabModule, tabModuleRef, tabAssemblyRef, tabTypeRef}}
)

// Resolution scope tags.
const (
	scopeAssemblyRef = 2
	scopeTypeRef     = 3
)

type colKind uint8

const (
	colFixed colKind = iota
	colString
	colGUID
	colBlob
	colTable
	colCoded
)

type column struct {
	kind  colKind
	size  int // colFixed
	table int // colTable
	coded codedIndex
}

func u16() column { return column{kind: colFixed, size: 2} }
func u32() column { return column{kind: colFixed, size: 4} }
func str() column { return column{kind: colString} }
func guid() column { return column{kind: colGUID} }
func blob() column { return column{kind: colBlob} }
func idx(t int) column { return column{kind: colTable, table: t} }
func coded(c codedIndex) column { return column{kind: colCoded, coded: c} }

// schemas lists the columns of every table up to lastReadTable.
var schemas = [lastReadTable + 1][]column{
	tabModule:            {u16(), str(), guid(), guid(), guid()},
	tabTypeRef:           {coded(resolutionScope), str(), str()},
	tabTypeDef:           {u32(), str(), str(), coded(typeDefOrRef), idx(tabField), idx(tabMethodDef)},
	tabFieldPtr:          {idx(tabField)},
	tabField:             {u16(), str(), blob()},
	tabMethodPtr:         {idx(tabMethodDef)},
	tabMethodDef:         {u32(), u16(), u16(), str(), blob(), idx(tabParam)},
	tabParamPtr:          {idx(tabParam)},
	tabParam:             {u16(), u16(), str()},
	tabInterfaceImpl:     {idx(tabTypeDef), coded(typeDefOrRef)},
	tabMemberRef:         {coded(memberRefParent), str(), blob()},
	tabConstant:          {u16(), coded(hasConstant), blob()},
	tabCustomAttribute:   {coded(hasCustomAttrib), coded(customAttribType), blob()},
	tabFieldMarshal:      {coded(hasFieldMarshal), blob()},
	tabDeclSecurity:      {u16(), coded(hasDeclSecurity), blob()},
	tabClassLayout:       {u16(), u32(), idx(tabTypeDef)},
	tabFieldLayout:       {u32(), idx(tabField)},
	tabStandAloneSig:     {blob()},
	tabEventMap:          {idx(tabTypeDef), idx(tabEvent)},
	tabEventPtr:          {idx(tabEvent)},
	tabEvent:             {u16(), str(), coded(typeDefOrRef)},
	tabPropertyMap:       {idx(tabTypeDef), idx(tabProperty)},
	tabPropertyPtr:       {idx(tabProperty)},
	tabProperty:          {u16(), str(), blob()},
	tabMethodSemantics:   {u16(), idx(tabMethodDef), coded(hasSemantics)},
	tabMethodImpl:        {idx(tabTypeDef), coded(methodDefOrRef), coded(methodDefOrRef)},
	tabModuleRef:         {str()},
	tabTypeSpec:          {blob()},
	tabImplMap:           {u16(), coded(memberForwarded), str(), idx(tabModuleRef)},
	tabFieldRVA:          {u32(), idx(tabField)},
	tabEncLog:            {u32(), u32()},
	tabEncMap:            {u32()},
	tabAssembly:          {u32(), u16(), u16(), u16(), u16(), u32(), blob(), str(), str()},
	tabAssemblyProcessor: {u32()},
	tabAssemblyOS:        {u32(), u32(), u32()},
	tabAssemblyRef:       {u16(), u16(), u16(), u16(), u32(), blob(), str(), str(), blob()},
}

// tableSet is the decoded layout of a #~ stream.
type tableSet struct {
	data    []byte
	rows    [64]uint32
	strW    int
	guidW   int
	blobW   int
	start   [lastReadTable + 1]int
	rowSize [lastReadTable + 1]int
	colOff  [lastReadTable + 1][]int
	colW    [lastReadTable + 1][]int
}

func parseTables(s []byte) (*tableSet, error) {
	if len(s) < 24 {
		return nil, ErrMalformed
	}
	t := &tableSet{strW: 2, guidW: 2, blobW: 2}
	heapSizes := s[6]
	if heapSizes&0x01 != 0 {
		t.strW = 4
	}
	if heapSizes&0x02 != 0 {
		t.guidW = 4
	}
	if heapSizes&0x04 != 0 {
		t.blobW = 4
	}

	valid := binary.LittleEndian.Uint64(s[8:])
	pos := 24
	for i := 0; i < 64; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		if pos+4 > len(s) {
			return nil, ErrMalformed
		}
		t.rows[i] = binary.LittleEndian.Uint32(s[pos:])
		pos += 4
	}
	if heapSizes&0x40 != 0 {
		pos += 4
	}

	for tab := 0; tab <= lastReadTable; tab++ {
		cols := schemas[tab]
		t.colOff[tab] = make([]int, len(cols))
		t.colW[tab] = make([]int, len(cols))
		size := 0
		for i, c := range cols {
			w := t.width(c)
			t.colOff[tab][i] = size
			t.colW[tab][i] = w
			size += w
		}
		t.rowSize[tab] = size
		t.start[tab] = pos
		pos += size * int(t.rows[tab])
		if pos > len(s) || pos < 0 {
			return nil, ErrMalformed
		}
	}
	t.data = s
	return t, nil
}

func (t *tableSet) width(c column) int {
	switch c.kind {
	case colFixed:
		return c.size
	case colString:
		return t.strW
	case colGUID:
		return t.guidW
	case colBlob:
		return t.blobW
	case colTable:
		if t.rows[c.table] < 1<<16 {
			return 2
		}
		return 4
	case colCoded:
		var max uint32
		for _, tab := range c.coded.tables {
			if tab != unused && t.rows[tab] > max {
				max = t.rows[tab]
			}
		}
		if max < 1<<(16-c.coded.bits) {
			return 2
		}
		return 4
	}
	return 0
}

// cell reads column col of the zero-based row of table tab.
func (t *tableSet) cell(tab, row, col int) uint32 {
	off := t.start[tab] + row*t.rowSize[tab] + t.colOff[tab][col]
	switch t.colW[tab][col] {
	case 1:
		return uint32(t.data[off])
	case 2:
		return uint32(binary.LittleEndian.Uint16(t.data[off:]))
	default:
		return binary.LittleEndian.Uint32(t.data[off:])
	}
}

func (t *tableSet) count(tab int) int {
	return int(t.rows[tab])
}

// decodeCoded splits a coded index into its tag and one-based row.
func decodeCoded(c codedIndex, v uint32) (tag int, row uint32) {
	mask := uint32(1)<<c.bits - 1
	return int(v & mask), v >> c.bits
}
