package formula

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var archiveSuffixes = []string{
	".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.zst", ".tzst", ".tar.bz2", ".tbz", ".tar", ".zip",
}

var (
	// v1.0.0, 1.2, 2.0.0-rc.1
	bareVersionRe = regexp.MustCompile(`^v?(\d+(?:\.\d+)*(?:[-.]?(?:alpha|beta|rc|pre)\.?\d*)?)$`)
	// tool-1.2.3, tool_v0.9
	suffixVersionRe = regexp.MustCompile(`[-_]v?(\d+(?:\.\d+)+(?:[-.]?(?:alpha|beta|rc|pre)\.?\d*)?)$`)
)

// DerivedVersion returns the explicit version if one is declared,
// otherwise the version parsed from the source URL. It returns "" when no
// version can be determined.
func (f *Formula) DerivedVersion() string {
	if f.Version != "" {
		return f.Version
	}
	return VersionFromURL(f.URL)
}

// VersionFromURL extracts a version from an archive URL such as
// https://github.com/o/r/archive/refs/tags/v1.0.0.tar.gz or
// https://example.com/dl/tool-1.2.3.tar.xz.
func VersionFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	stem := path.Base(u.Path)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(stem, suffix) {
			stem = strings.TrimSuffix(stem, suffix)
			break
		}
	}
	if m := bareVersionRe.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	if m := suffixVersionRe.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	return ""
}
