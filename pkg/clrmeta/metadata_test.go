package clrmeta

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/nugallery/pkg/clrmeta/clrmetatest"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func widgets(t *testing.T) *clrmetatest.Builder {
	return clrmetatest.New().
		Module("Contoso.Widgets.dll").
		AssemblyRef("System.Runtime", clrmetatest.Version{4, 2, 2, 0}, mustHex(t, "b03f5f7f11d50a3a")).
		AssemblyRef("Newtonsoft.Json", clrmetatest.Version{13, 0, 0, 0}, mustHex(t, "30ad4fe6b2a6aeed")).
		TypeRef(clrmetatest.ScopeAssemblyRef, 1, "System", "Object").
		TypeRef(clrmetatest.ScopeAssemblyRef, 2, "Newtonsoft.Json", "JsonConvert").
		TypeRef(clrmetatest.ScopeTypeRef, 2, "", "Nested").
		TypeDef(0, "", "<Module>").
		TypeDef(0x00100001, "Contoso.Widgets", "Widget").
		TypeDef(0x00100000, "Contoso.Widgets", "WidgetCache").
		Assembly("Contoso.Widgets", clrmetatest.Version{1, 2, 3, 4}, nil)
}

func TestReadMetadata(t *testing.T) {
	asm, err := ReadMetadata(widgets(t).Metadata())
	require.NoError(t, err)

	assert.Equal(t, "Contoso.Widgets", asm.Name)
	assert.Equal(t, "1.2.3.4", asm.Version.String())
	assert.Equal(t, "Contoso.Widgets.dll", asm.Module)
	assert.Equal(t, "v4.0.30319", asm.RuntimeVersion)
	assert.Equal(t, "Contoso.Widgets, Version=1.2.3.4, Culture=neutral, PublicKeyToken=null", asm.FullName())

	require.Len(t, asm.References, 2)
	assert.Equal(t, "System.Runtime", asm.References[0].Name)
	assert.Equal(t, "b03f5f7f11d50a3a", asm.References[0].PublicKeyToken)
	assert.Equal(t, "Newtonsoft.Json, Version=13.0.0.0, Culture=neutral, PublicKeyToken=30ad4fe6b2a6aeed",
		asm.References[1].FullName())

	ref, ok := asm.Reference("Newtonsoft.Json")
	assert.True(t, ok)
	assert.Equal(t, uint16(13), ref.Version.Major)
	_, ok = asm.Reference("newtonsoft.json")
	assert.False(t, ok, "reference lookup is case-sensitive")

	require.Len(t, asm.Types, 2, "<Module> is skipped")
	assert.Equal(t, "Contoso.Widgets.Widget", asm.Types[0].FullName())
	assert.True(t, asm.Types[0].IsPublic())
	assert.False(t, asm.Types[1].IsPublic())
	assert.Len(t, asm.PublicTypes(), 1)

	require.Len(t, asm.TypeRefs, 3)
	assert.Equal(t, TypeRef{Namespace: "System", Name: "Object", Assembly: "System.Runtime"}, asm.TypeRefs[0])
	assert.Equal(t, "Newtonsoft.Json.JsonConvert", asm.TypeRefs[1].FullName())
	assert.Equal(t, "Newtonsoft.Json", asm.TypeRefs[2].Assembly, "nested type follows its enclosing scope")
}

func TestReadMetadataPublicKey(t *testing.T) {
	key := []byte{0x00, 0x24, 0x00, 0x00, 0x04, 0x80}
	md := clrmetatest.New().
		Module("Signed.dll").
		Assembly("Signed", clrmetatest.Version{1, 0, 0, 0}, key).
		Metadata()

	asm, err := ReadMetadata(md)
	require.NoError(t, err)
	assert.Len(t, asm.PublicKeyToken, 16)
	assert.Equal(t, keyToken(key), asm.PublicKeyToken)
	assert.Empty(t, asm.References)
}

func TestReadMetadataMalformed(t *testing.T) {
	good := widgets(t).Metadata()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad signature", append([]byte("XXXX"), good[4:]...)},
		{"truncated header", good[:20]},
		{"truncated tables", good[:len(good)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMetadata(tt.data)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRead(t *testing.T) {
	asm, err := ReadBytes(widgets(t).PE())
	require.NoError(t, err)
	assert.Equal(t, "Contoso.Widgets", asm.Name)
	assert.Len(t, asm.References, 2)
}

func TestReadSimple(t *testing.T) {
	asm, err := ReadBytes(clrmetatest.Simple("Acme.Core", "netstandard", "Acme.Abstractions"))
	require.NoError(t, err)
	assert.Equal(t, "Acme.Core", asm.Name)
	assert.Equal(t, []string{"netstandard", "Acme.Abstractions"},
		[]string{asm.References[0].Name, asm.References[1].Name})
	assert.Equal(t, "Acme.Core.Class1", asm.Types[0].FullName())
}

func TestReadNotPE(t *testing.T) {
	_, err := ReadBytes([]byte("this is not a portable executable at all, just text padding it out to a reasonable length for the dos header"))
	assert.Error(t, err)
}

func TestReadNativeImage(t *testing.T) {
	img := widgets(t).PE()
	for i := 0; i < 8; i++ {
		img[clrmetatest.ComDirectoryOffset+i] = 0
	}
	_, err := ReadBytes(img)
	assert.ErrorIs(t, err, ErrNotManaged)
}
