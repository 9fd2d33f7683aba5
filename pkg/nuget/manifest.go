package nuget

import (
	"encoding/xml"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/nugallery/pkg/errors"
)

// Element names match in any namespace: nuspec files use several schema
// versions.
type nuspec struct {
	Metadata *nuspecMetadata `xml:"metadata"`
}

type nuspecMetadata struct {
	ID           *string             `xml:"id"`
	Authors      string              `xml:"authors"`
	Owners       string              `xml:"owners"`
	ProjectURL   string              `xml:"projectUrl"`
	IconURL      string              `xml:"iconUrl"`
	Description  string              `xml:"description"`
	Dependencies *nuspecDependencies `xml:"dependencies"`
}

// nuspecDependencies keeps groups and ungrouped dependencies in document
// order.
type nuspecDependencies struct {
	Items []nuspecDependencyItem `xml:",any"`
}

type nuspecDependencyItem struct {
	XMLName         xml.Name
	ID              string             `xml:"id,attr"`
	Version         string             `xml:"version,attr"`
	TargetFramework *string            `xml:"targetFramework,attr"`
	Dependencies    []nuspecDependency `xml:"dependency"`
}

type nuspecDependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

func (p *Package) readManifest(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "open manifest %s", f.Name)
	}
	defer rc.Close()

	var doc nuspec
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "decode manifest %s", f.Name)
	}
	return p.applyManifest(&doc)
}

func (p *Package) applyManifest(doc *nuspec) error {
	meta := doc.Metadata
	if meta == nil {
		return errors.New(errors.ErrCodeParse, "manifest has no metadata element")
	}

	p.ID = p.IndexID
	if meta.ID != nil {
		p.ID = strings.TrimSpace(*meta.ID)
	}
	p.Authors = strings.TrimSpace(meta.Authors)
	p.Owners = strings.TrimSpace(meta.Owners)
	p.ProjectURL = strings.TrimSpace(meta.ProjectURL)
	p.IconURL = strings.TrimSpace(meta.IconURL)
	p.Description = strings.TrimSpace(meta.Description)

	if meta.Dependencies == nil {
		return nil
	}
	for _, item := range meta.Dependencies.Items {
		switch item.XMLName.Local {
		case "group":
			if item.TargetFramework == nil {
				continue
			}
			tf := p.FindExactTargetFramework(NormalizeFramework(*item.TargetFramework))
			if tf == nil {
				continue
			}
			for _, d := range item.Dependencies {
				tf.AddDependency(Dependency{ID: d.ID, VersionSpec: d.Version, Group: *item.TargetFramework})
			}
		case "dependency":
			d := Dependency{ID: item.ID, VersionSpec: item.Version}
			for _, tf := range p.TargetFrameworks {
				tf.AddDependency(d)
			}
		}
	}
	return nil
}
