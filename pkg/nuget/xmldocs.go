package nuget

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/matzehuels/nugallery/pkg/errors"
)

// XMLDocs is the XML documentation companion of an assembly.
type XMLDocs struct {
	AssemblyName string            `json:"assembly"`
	Members      map[string]string `json:"members"`
}

type xmlDocFile struct {
	Assembly struct {
		Name string `xml:"name"`
	} `xml:"assembly"`
	Members []struct {
		Name    string `xml:"name,attr"`
		Summary string `xml:"summary"`
	} `xml:"members>member"`
}

// ParseXMLDocs reads a compiler-generated documentation file. Member
// summaries are keyed by their documentation id ("T:Ns.Type",
// "M:Ns.Type.Method(System.String)").
func ParseXMLDocs(r io.Reader) (*XMLDocs, error) {
	var f xmlDocFile
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode xml documentation")
	}
	name := strings.TrimSpace(f.Assembly.Name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeParse, "xml documentation has no assembly name")
	}
	docs := &XMLDocs{AssemblyName: name, Members: make(map[string]string, len(f.Members))}
	for _, m := range f.Members {
		if m.Name == "" {
			continue
		}
		docs.Members[m.Name] = strings.Join(strings.Fields(m.Summary), " ")
	}
	return docs, nil
}

// TypeSummary returns the summary of a type given its full name.
func (d *XMLDocs) TypeSummary(fullName string) string {
	if d == nil {
		return ""
	}
	return d.Members["T:"+fullName]
}
