// Package formula defines the package descriptor consumed by the installer.
//
// A Formula is a plain, immutable record: where to fetch a source archive,
// the SHA-256 digest the archive must have, and the install actions that map
// files inside the extracted archive to installed names. Formulae are read
// from Homebrew-style Ruby files or from an equivalent YAML manifest, and can
// be rendered back to either form.
package formula

import "path"

// DirBin is the only supported install directory.
const DirBin = "bin"

// Formula describes how to obtain and install one piece of software.
type Formula struct {
	Name      string          `yaml:"name,omitempty"`
	Class     string          `yaml:"class,omitempty"`
	Desc      string          `yaml:"desc"`
	Homepage  string          `yaml:"homepage"`
	URL       string          `yaml:"url"`
	SHA256    string          `yaml:"sha256"`
	License   string          `yaml:"license"`
	Version   string          `yaml:"version,omitempty"`
	Signature string          `yaml:"signature,omitempty"`
	Install   []InstallAction `yaml:"install"`
}

// InstallAction copies Source from the extracted archive into Dir,
// naming it Target.
type InstallAction struct {
	Dir    string `yaml:"dir,omitempty"`
	Source string `yaml:"source"`
	Target string `yaml:"target,omitempty"`
}

// Clone returns a deep copy of f.
func (f *Formula) Clone() *Formula {
	c := *f
	c.Install = append([]InstallAction(nil), f.Install...)
	return &c
}

// Targets returns the installed names of all install actions, in order.
func (f *Formula) Targets() []string {
	targets := make([]string, 0, len(f.Install))
	for _, a := range f.Install {
		targets = append(targets, a.Target)
	}
	return targets
}

// normalize fills the fields that have a canonical default so that every
// parser produces identical values for equivalent input.
func (f *Formula) normalize() {
	switch {
	case f.Class == "" && f.Name != "":
		f.Class = ClassName(f.Name)
	case f.Name == "" && f.Class != "":
		f.Name = NameFromClass(f.Class)
	}
	for i := range f.Install {
		a := &f.Install[i]
		if a.Dir == "" {
			a.Dir = DirBin
		}
		if a.Target == "" {
			a.Target = path.Base(a.Source)
		}
	}
}
