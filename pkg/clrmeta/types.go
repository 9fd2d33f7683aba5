package clrmeta

import (
	"fmt"
	"strings"
)

// Version is a four-part assembly version.
type Version struct {
	Major    uint16 `json:"major"`
	Minor    uint16 `json:"minor"`
	Build    uint16 `json:"build"`
	Revision uint16 `json:"revision"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// Reference is an entry of the AssemblyRef table.
type Reference struct {
	Name           string  `json:"name"`
	Version        Version `json:"version"`
	Culture        string  `json:"culture,omitempty"`
	PublicKeyToken string  `json:"public_key_token,omitempty"`
}

// FullName returns the display name in the usual
// "Name, Version=..., Culture=..., PublicKeyToken=..." form.
func (r Reference) FullName() string {
	return displayName(r.Name, r.Version, r.Culture, r.PublicKeyToken)
}

// Type is a type defined by the assembly.
type Type struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Flags     uint32 `json:"flags"`
}

// FullName joins namespace and name.
func (t Type) FullName() string {
	return qualify(t.Namespace, t.Name)
}

// IsPublic reports whether the type is visible outside the assembly.
func (t Type) IsPublic() bool {
	vis := t.Flags & 0x7
	return vis == 1 || vis == 2
}

// TypeRef is a type imported from another scope. Assembly is the name of
// the referenced assembly when the type comes from one, and empty for types
// scoped to a module or the current assembly.
type TypeRef struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Assembly  string `json:"assembly,omitempty"`
}

// FullName joins namespace and name.
func (t TypeRef) FullName() string {
	return qualify(t.Namespace, t.Name)
}

// Assembly is the structured definition of one managed image.
type Assembly struct {
	Name           string      `json:"name"`
	Version        Version     `json:"version"`
	Culture        string      `json:"culture,omitempty"`
	PublicKeyToken string      `json:"public_key_token,omitempty"`
	Module         string      `json:"module,omitempty"`
	RuntimeVersion string      `json:"runtime_version,omitempty"`
	References     []Reference `json:"references"`
	Types          []Type      `json:"types"`
	TypeRefs       []TypeRef   `json:"type_refs"`
}

// FullName returns the assembly display name.
func (a *Assembly) FullName() string {
	return displayName(a.Name, a.Version, a.Culture, a.PublicKeyToken)
}

// Reference returns the AssemblyRef entry with the given simple name.
func (a *Assembly) Reference(name string) (Reference, bool) {
	for _, r := range a.References {
		if r.Name == name {
			return r, true
		}
	}
	return Reference{}, false
}

// PublicTypes returns the externally visible types, in table order.
func (a *Assembly) PublicTypes() []Type {
	var out []Type
	for _, t := range a.Types {
		if t.IsPublic() {
			out = append(out, t)
		}
	}
	return out
}

func displayName(name string, v Version, culture, token string) string {
	if culture == "" {
		culture = "neutral"
	}
	if token == "" {
		token = "null"
	}
	return fmt.Sprintf("%s, Version=%s, Culture=%s, PublicKeyToken=%s", name, v, culture, token)
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return strings.Join([]string{ns, name}, ".")
}
