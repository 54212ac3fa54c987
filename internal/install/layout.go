package install

import "path/filepath"

// Layout locates the directories of a formulary prefix.
//
//	<prefix>/Cellar/<name>/<version>   installed kegs
//	<prefix>/bin                       symlinks into kegs
//	<prefix>/cache                     verified downloads
//	<prefix>/tmp                       staging
//	<prefix>/var                       database
type Layout struct {
	Prefix string
}

func (l Layout) Cellar() string  { return filepath.Join(l.Prefix, "Cellar") }
func (l Layout) Bin() string     { return filepath.Join(l.Prefix, "bin") }
func (l Layout) Cache() string   { return filepath.Join(l.Prefix, "cache") }
func (l Layout) Staging() string { return filepath.Join(l.Prefix, "tmp") }
func (l Layout) Var() string     { return filepath.Join(l.Prefix, "var") }

// Keg returns the directory a formula version is installed into.
func (l Layout) Keg(name, version string) string {
	return filepath.Join(l.Cellar(), name, version)
}
