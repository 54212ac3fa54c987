// Package scanner compares the kegs on disk with the database and repairs
// the difference.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/blackwell-systems/formulary/internal/install"
	"github.com/blackwell-systems/formulary/internal/link"
	"github.com/blackwell-systems/formulary/internal/receipt"
	"github.com/blackwell-systems/formulary/internal/store"
)

// Scanner walks a prefix and reconciles it with the store.
type Scanner struct {
	store  *store.Store
	layout install.Layout
	logger *zap.Logger
}

// New creates a new Scanner instance with the given store.
func New(st *store.Store, layout install.Layout, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{store: st, layout: layout, logger: logger.Named("scanner")}
}

// ScanCellar returns the kegs found under the Cellar, ordered by name and
// version, and the keg directories that carry no readable receipt.
func (s *Scanner) ScanCellar() ([]*store.Keg, []string, error) {
	names, err := os.ReadDir(s.layout.Cellar())
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cellar: %w", err)
	}

	var kegs []*store.Keg
	var unreadable []string
	for _, name := range names {
		if !name.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(s.layout.Cellar(), name.Name()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", name.Name(), err)
		}
		for _, version := range versions {
			if !version.IsDir() {
				continue
			}
			kegDir := filepath.Join(s.layout.Cellar(), name.Name(), version.Name())
			rcpt, err := receipt.Read(kegDir)
			if err != nil {
				s.logger.Debug("skipping keg", zap.String("keg", kegDir), zap.Error(err))
				unreadable = append(unreadable, kegDir)
				continue
			}
			kegs = append(kegs, s.kegFromReceipt(kegDir, rcpt))
		}
	}

	sort.Slice(kegs, func(i, j int) bool {
		if kegs[i].Name != kegs[j].Name {
			return kegs[i].Name < kegs[j].Name
		}
		return kegs[i].Version < kegs[j].Version
	})
	return kegs, unreadable, nil
}

func (s *Scanner) kegFromReceipt(kegDir string, r *receipt.Receipt) *store.Keg {
	k := &store.Keg{
		Name:        r.Formula,
		Version:     r.Version,
		URL:         r.Source.URL,
		SHA256:      r.Source.SHA256,
		License:     r.License,
		Path:        kegDir,
		InstalledAt: r.InstalledAt,
		Files:       r.Files,
	}
	for name := range r.Files {
		k.Links = append(k.Links, filepath.Join(s.layout.Bin(), name))
	}
	sort.Strings(k.Links)
	return k
}

// Report describes the differences found by Reconcile.
type Report struct {
	// Adopted kegs are on disk but were missing from the store.
	Adopted []*store.Keg
	// Missing store rows point at keg directories that no longer exist.
	Missing []*store.Keg
	// Stale kegs are on disk beside the recorded version of the same formula.
	Stale []*store.Keg
	// Unreadable keg directories have no valid receipt.
	Unreadable []string
	// BrokenLinks are bin path symlinks whose target is gone.
	BrokenLinks []string
	// Conflicts are adopted kegs that could not be linked.
	Conflicts []error
}

// Clean reports whether nothing needs repair.
func (r *Report) Clean() bool {
	return len(r.Adopted) == 0 && len(r.Missing) == 0 && len(r.Stale) == 0 &&
		len(r.Unreadable) == 0 && len(r.BrokenLinks) == 0
}

// Reconcile compares the Cellar with the store. With fix set it records
// adopted kegs and links them, drops rows of missing kegs, and removes
// broken links. Stale and unreadable kegs are only reported.
func (s *Scanner) Reconcile(fix bool) (*Report, error) {
	onDisk, unreadable, err := s.ScanCellar()
	if err != nil {
		return nil, err
	}
	recorded, err := s.store.ListKegs()
	if err != nil {
		return nil, err
	}

	report := &Report{Unreadable: unreadable}
	byName := make(map[string]*store.Keg, len(recorded))
	for _, k := range recorded {
		if _, err := os.Stat(k.Path); os.IsNotExist(err) {
			report.Missing = append(report.Missing, k)
			continue
		}
		byName[k.Name] = k
	}

	// Newest receipt wins when several versions of an unrecorded formula
	// are on disk.
	candidates := make(map[string]*store.Keg)
	for _, k := range onDisk {
		if rec, ok := byName[k.Name]; ok {
			if rec.Path != k.Path {
				report.Stale = append(report.Stale, k)
			}
			continue
		}
		if c, ok := candidates[k.Name]; ok {
			if k.InstalledAt.After(c.InstalledAt) {
				report.Stale = append(report.Stale, c)
				candidates[k.Name] = k
			} else {
				report.Stale = append(report.Stale, k)
			}
			continue
		}
		candidates[k.Name] = k
	}
	for _, k := range onDisk {
		if candidates[k.Name] == k {
			report.Adopted = append(report.Adopted, k)
		}
	}

	report.BrokenLinks, err = link.Broken(s.layout.Bin())
	if err != nil {
		return report, err
	}

	if fix {
		if err := s.fix(report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Scanner) fix(report *Report) error {
	// Broken links go first so adopted kegs can take their names.
	for _, p := range report.BrokenLinks {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("failed to remove broken link %s: %w", p, err)
		}
		s.logger.Info("removed broken link", zap.String("link", p))
	}

	for _, k := range report.Missing {
		if err := s.store.DeleteKeg(k.Name); err != nil && !errors.Is(err, store.ErrNotInstalled) {
			return err
		}
		s.record(&store.Event{Formula: k.Name, Action: store.ActionUninstall, Version: k.Version, Detail: "keg missing from cellar"})
	}

	for _, k := range report.Adopted {
		files := make(map[string]string, len(k.Files))
		for name, rel := range k.Files {
			files[name] = filepath.Join(k.Path, filepath.FromSlash(rel))
		}
		links, err := link.Link(s.layout.Bin(), files)
		if err != nil {
			report.Conflicts = append(report.Conflicts, fmt.Errorf("%s: %w", k.Name, err))
			links = nil
		}
		k.Links = links
		if err := s.store.PutKeg(k); err != nil {
			return err
		}
		s.record(&store.Event{Formula: k.Name, Action: store.ActionAdopt, Version: k.Version, Detail: k.Path})
	}
	return nil
}

func (s *Scanner) record(e *store.Event) {
	if _, err := s.store.InsertEvent(e); err != nil {
		s.logger.Warn("failed to record event", zap.String("action", e.Action), zap.Error(err))
	}
}
