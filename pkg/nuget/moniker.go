package nuget

import "strings"

// portableProfiles maps PCL profile names to their netstandard equivalent,
// or to an explicit portable framework list.
var portableProfiles = map[string]string{
	"profile7":   "netstandard1.1",
	"profile31":  "netstandard1.0",
	"profile32":  "netstandard1.2",
	"profile44":  "netstandard1.2",
	"profile49":  "netstandard1.0",
	"profile78":  "netstandard1.0",
	"profile84":  "netstandard1.0",
	"profile111": "netstandard1.1",
	"profile151": "netstandard1.2",
	"profile157": "netstandard1.0",
	"profile259": "netstandard1.0",
	"profile328": "portable-net40+sl5+win8+wp8+wpa81",
}

// NormalizeFramework maps a manifest target framework name, in either its
// long form (".NETFramework,Version=v4.6.1") or short form ("net461"), to
// the folder moniker used inside packages.
//
// The rewrite rules are applied in order, each to the output of the one
// before:
//
//	.NETFramework4.6.1         -> net461
//	WindowsPhoneApp8.1         -> wpa81
//	WindowsPhone8.0            -> wp80
//	Windows8.0                 -> win8
//	Xamarin.iOS1.0             -> xamarin.ios10
//	.NETPortable0.0-Profile111 -> netstandard1.1
func NormalizeFramework(name string) string {
	r := strings.ToLower(strings.TrimSpace(name))
	r = strings.TrimPrefix(r, ".")
	r = strings.Replace(r, ",version=v", "", 1)
	r = strings.Replace(r, ",version=", "", 1)
	r = strings.Replace(r, ",profile=", "-", 1)

	if rest, ok := strings.CutPrefix(r, "netframework"); ok {
		r = "net" + strings.ReplaceAll(rest, ".", "")
	}
	if rest, ok := strings.CutPrefix(r, "windowsphoneapp"); ok {
		r = "wpa" + strings.ReplaceAll(strings.ReplaceAll(rest, ".0", ""), ".", "")
	}
	if rest, ok := strings.CutPrefix(r, "windowsphone"); ok {
		r = "wp" + strings.ReplaceAll(rest, ".", "")
	}
	if rest, ok := strings.CutPrefix(r, "windows"); ok {
		r = "win" + strings.ReplaceAll(strings.ReplaceAll(rest, ".0", ""), ".", "")
	}
	if rest, ok := strings.CutPrefix(r, "xamarin."); ok {
		r = "xamarin." + strings.ReplaceAll(rest, ".", "")
	}
	if !strings.HasPrefix(r, "uap") {
		r = dropZeroVersion(r)
	}
	if strings.HasPrefix(r, "netportable") {
		profile := r[strings.IndexByte(r, '-')+1:]
		if m, ok := portableProfiles[profile]; ok {
			return m
		}
		r = "portable-" + profile
	}
	return r
}

// dropZeroVersion removes "0.0" placeholder versions ("netportable0.0")
// but leaves real versions such as net10.0 alone.
func dropZeroVersion(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "0.0") && (i == 0 || !isDigit(s[i-1])) {
			i += 3
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
