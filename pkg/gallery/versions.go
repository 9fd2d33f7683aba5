package gallery

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/matzehuels/nugallery/pkg/errors"
)

// PackageVersions is the cached version index of one package id.
type PackageVersions struct {
	ID       string   `json:"id"`
	Versions []string `json:"versions"`

	// Err is the terminal fetch failure, if any.
	Err error `json:"-"`
}

type listedVersion struct {
	raw    string
	parsed *version.Version
}

// sorted returns the parseable listed versions in ascending order.
// Entries go-version cannot parse are skipped.
func (pv *PackageVersions) sorted() []listedVersion {
	out := make([]listedVersion, 0, len(pv.Versions))
	for _, raw := range pv.Versions {
		v, err := version.NewVersion(raw)
		if err != nil {
			continue
		}
		out = append(out, listedVersion{raw: raw, parsed: v})
	}
	slices.SortStableFunc(out, func(a, b listedVersion) int { return a.parsed.Compare(b.parsed) })
	return out
}

// Latest returns the highest stable version, or the highest prerelease
// when no stable version is listed.
func (pv *PackageVersions) Latest() (string, bool) {
	listed := pv.sorted()
	if len(listed) == 0 {
		return "", false
	}
	for i := len(listed) - 1; i >= 0; i-- {
		if listed[i].parsed.Prerelease() == "" {
			return listed[i].raw, true
		}
	}
	return listed[len(listed)-1].raw, true
}

// Resolve maps a version spec to a concrete listed version.
//
//   - "" or "latest" selects [PackageVersions.Latest].
//   - A listed version selects itself.
//   - A range ("[1.0,2.0)", "(,3.0]", "[1.2]") or a bare minimum ("1.0"
//     meaning >= 1.0) selects the lowest listed version satisfying it.
//
// When the index could not be fetched a plain version is returned verbatim
// so that packages missing from the index can still be downloaded.
func (pv *PackageVersions) Resolve(spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	latest := spec == "" || strings.EqualFold(spec, "latest")

	if pv.Err != nil || len(pv.Versions) == 0 {
		if !latest && isPlainVersion(spec) {
			return spec, nil
		}
		if pv.Err != nil && errors.IsNotFound(pv.Err) {
			return "", errors.Wrap(errors.ErrCodePackageNotFound, pv.Err, "package %s not found", pv.ID)
		}
		return "", errors.Wrap(errors.ErrCodeVersionNotFound, pv.Err, "no versions of %s available for %q", pv.ID, spec)
	}

	if latest {
		if v, ok := pv.Latest(); ok {
			return v, nil
		}
		return "", errors.New(errors.ErrCodeVersionNotFound, "no parseable versions of %s", pv.ID)
	}

	for _, raw := range pv.Versions {
		if strings.EqualFold(raw, spec) {
			return raw, nil
		}
	}

	listed := pv.sorted()
	if want, err := version.NewVersion(spec); err == nil {
		for _, lv := range listed {
			if lv.parsed.Equal(want) {
				return lv.raw, nil
			}
		}
	}

	constraints, err := parseRange(spec)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid version spec %q", spec)
	}
	for _, lv := range listed {
		if constraints.Check(lv.parsed) {
			return lv.raw, nil
		}
	}
	return "", errors.New(errors.ErrCodeVersionNotFound, "no version of %s satisfies %q", pv.ID, spec)
}

func isPlainVersion(spec string) bool {
	if spec == "" || strings.ContainsAny(spec, "[](),") {
		return false
	}
	_, err := version.NewVersion(spec)
	return err == nil
}

// parseRange converts NuGet interval notation into go-version constraints.
// A bare version is a minimum, inclusive.
func parseRange(spec string) (version.Constraints, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return nil, fmt.Errorf("empty range")
	}

	if s[0] != '[' && s[0] != '(' {
		if !isPlainVersion(s) {
			return nil, fmt.Errorf("malformed version %q", s)
		}
		return version.NewConstraint(">= " + s)
	}

	open, closing := s[0], s[len(s)-1]
	if len(s) < 3 || (closing != ']' && closing != ')') {
		return nil, fmt.Errorf("unterminated range %q", s)
	}
	lower, upper, hasComma := strings.Cut(s[1:len(s)-1], ",")
	lower, upper = strings.TrimSpace(lower), strings.TrimSpace(upper)

	if !hasComma {
		if open != '[' || closing != ']' || lower == "" {
			return nil, fmt.Errorf("malformed exact range %q", s)
		}
		return version.NewConstraint("= " + lower)
	}

	var parts []string
	if lower != "" {
		op := ">="
		if open == '(' {
			op = ">"
		}
		parts = append(parts, op+" "+lower)
	}
	if upper != "" {
		op := "<="
		if closing == ')' {
			op = "<"
		}
		parts = append(parts, op+" "+upper)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("range %q has no bounds", s)
	}
	return version.NewConstraint(strings.Join(parts, ", "))
}
