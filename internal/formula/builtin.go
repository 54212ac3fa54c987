package formula

import "sort"

var builtins = map[string]*Formula{
	"shell-menu-runner": {
		Name:     "shell-menu-runner",
		Class:    "ShellMenuRunner",
		Desc:     "Zero-dependency task runner",
		Homepage: "https://github.com/MarioPeters/shell-menu-runner/",
		URL:      "https://github.com/MarioPeters/shell-menu-runner/archive/refs/tags/v1.0.0.tar.gz",
		SHA256:   "5949c755d19a767a9c26963f88ce21d7e1495e1ca3d1524bf998991d5a6151a6",
		License:  "MIT",
		Install: []InstallAction{
			{Dir: DirBin, Source: "run.sh", Target: "run"},
		},
	},
}

// Builtin returns a copy of the named builtin formula. Both the formula
// name and its class name are accepted.
func Builtin(name string) (*Formula, bool) {
	if f, ok := builtins[name]; ok {
		return f.Clone(), true
	}
	if f, ok := builtins[NameFromClass(name)]; ok && f.Class == name {
		return f.Clone(), true
	}
	return nil, false
}

// Builtins returns copies of all builtin formulae sorted by name.
func Builtins() []*Formula {
	out := make([]*Formula, 0, len(builtins))
	for _, f := range builtins {
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
