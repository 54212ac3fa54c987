package formula

import (
	"net/url"
	"strings"
)

// Severity levels for audit findings.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

const maxDescLength = 80

// Finding is a single audit result.
type Finding struct {
	Field    string
	Severity string
	Message  string
}

var knownLicenses = map[string]bool{
	"0BSD": true, "AGPL-3.0-only": true, "AGPL-3.0-or-later": true, "Apache-2.0": true,
	"Artistic-2.0": true, "BSD-2-Clause": true, "BSD-3-Clause": true, "BSL-1.0": true,
	"CC0-1.0": true, "EPL-2.0": true, "GPL-2.0-only": true, "GPL-2.0-or-later": true,
	"GPL-3.0-only": true, "GPL-3.0-or-later": true, "ISC": true, "LGPL-2.1-only": true,
	"LGPL-2.1-or-later": true, "LGPL-3.0-only": true, "LGPL-3.0-or-later": true, "MIT": true,
	"MPL-2.0": true, "Unlicense": true, "WTFPL": true, "Zlib": true,
}

// Audit runs style checks in addition to Validate. Validation failures are
// reported as error findings on the "formula" field.
func (f *Formula) Audit() []Finding {
	var findings []Finding
	add := func(field, severity, msg string) {
		findings = append(findings, Finding{Field: field, Severity: severity, Message: msg})
	}

	if err := f.Validate(); err != nil {
		for _, e := range unwrapJoined(err) {
			add("formula", SeverityError, e.Error())
		}
	}

	desc := strings.TrimSpace(f.Desc)
	lower := strings.ToLower(desc)
	switch {
	case desc == "":
		add("desc", SeverityError, "desc is missing")
	default:
		for _, article := range []string{"a ", "an ", "the "} {
			if strings.HasPrefix(lower, article) {
				add("desc", SeverityWarning, "desc should not start with an article")
				break
			}
		}
		if f.Name != "" && strings.HasPrefix(lower, strings.ToLower(f.Name)) {
			add("desc", SeverityWarning, "desc should not start with the formula name")
		}
		if strings.HasSuffix(desc, ".") {
			add("desc", SeverityWarning, "desc should not end with a period")
		}
		if len(desc) > maxDescLength {
			add("desc", SeverityWarning, "desc is longer than 80 characters")
		}
	}

	if f.Homepage == "" {
		add("homepage", SeverityError, "homepage is missing")
	} else if scheme(f.Homepage) != "https" {
		add("homepage", SeverityWarning, "homepage should use https")
	}

	switch scheme(f.URL) {
	case "http":
		add("url", SeverityWarning, "url should use https")
	case "file":
		add("url", SeverityWarning, "url points at a local file")
	}

	if f.SHA256 != strings.ToLower(f.SHA256) {
		add("sha256", SeverityWarning, "sha256 should be lowercase")
	}

	if f.License == "" {
		add("license", SeverityWarning, "license is missing")
	} else if !knownLicenses[f.License] {
		add("license", SeverityWarning, "license "+f.License+" is not a recognised SPDX identifier")
	}

	if f.DerivedVersion() == "" {
		add("version", SeverityError, "version cannot be derived from url; declare it explicitly")
	}

	return findings
}

// HasErrors reports whether any finding has error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

func scheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
