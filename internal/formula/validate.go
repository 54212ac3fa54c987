package formula

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	nameRe   = regexp.MustCompile(`^[a-z0-9][a-z0-9+_.@-]*$`)
	sha256Re = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// Validate checks that f can be interpreted by the installer. Every
// violation is reported; the result is nil or an errors.Join of them.
func (f *Formula) Validate() error {
	var errs []error

	if f.Name == "" {
		errs = append(errs, errors.New("name is required"))
	} else if !nameRe.MatchString(f.Name) {
		errs = append(errs, fmt.Errorf("name %q is not a valid formula name", f.Name))
	}

	if err := checkSourceURL("url", f.URL); err != nil {
		errs = append(errs, err)
	}
	if f.Signature != "" {
		if err := checkSourceURL("signature", f.Signature); err != nil {
			errs = append(errs, err)
		}
	}

	if !sha256Re.MatchString(f.SHA256) {
		errs = append(errs, fmt.Errorf("sha256 %q is not a 64 digit hex digest", f.SHA256))
	}

	if len(f.Install) == 0 {
		errs = append(errs, errors.New("at least one install action is required"))
	}
	targets := make(map[string]bool)
	for i, a := range f.Install {
		if a.Dir != DirBin {
			errs = append(errs, fmt.Errorf("install[%d]: unsupported directory %q", i, a.Dir))
		}
		if err := checkSource(a.Source); err != nil {
			errs = append(errs, fmt.Errorf("install[%d]: %w", i, err))
		}
		if a.Target == "" || a.Target == "." || a.Target == ".." || strings.ContainsAny(a.Target, `/\`) {
			errs = append(errs, fmt.Errorf("install[%d]: target %q must be a plain file name", i, a.Target))
		} else if targets[a.Target] {
			errs = append(errs, fmt.Errorf("install[%d]: target %q installed twice", i, a.Target))
		}
		targets[a.Target] = true
	}

	return errors.Join(errs...)
}

func checkSourceURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid URL: %w", field, raw, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%s %q has no host", field, raw)
		}
	case "file":
		if u.Path == "" {
			return fmt.Errorf("%s %q has no path", field, raw)
		}
	default:
		return fmt.Errorf("%s %q: unsupported scheme %q", field, raw, u.Scheme)
	}
	return nil
}

func checkSource(src string) error {
	if src == "" {
		return errors.New("source is required")
	}
	if path.IsAbs(src) || strings.HasPrefix(src, `\`) {
		return fmt.Errorf("source %q must be relative to the archive root", src)
	}
	clean := path.Clean(src)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("source %q escapes the archive root", src)
	}
	return nil
}
