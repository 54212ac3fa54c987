// Package install interprets formulae: it fetches and verifies the source
// archive, extracts it into a staging area, performs the install actions
// into a keg, and links the keg onto the bin path.
//
// An install either completes or leaves nothing behind on the bin path.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackwell-systems/formulary/internal/archive"
	"github.com/blackwell-systems/formulary/internal/checksum"
	"github.com/blackwell-systems/formulary/internal/fetch"
	"github.com/blackwell-systems/formulary/internal/formula"
	"github.com/blackwell-systems/formulary/internal/link"
	"github.com/blackwell-systems/formulary/internal/receipt"
	"github.com/blackwell-systems/formulary/internal/signature"
	"github.com/blackwell-systems/formulary/internal/store"
)

var (
	// ErrAlreadyInstalled is returned when the same version is already
	// installed and Options.Force is not set.
	ErrAlreadyInstalled = errors.New("already installed")

	// ErrMissingInstallSource is matched by MissingSourceError.
	ErrMissingInstallSource = errors.New("install source missing from archive")

	// ErrNoVersion is returned when neither the formula nor its URL
	// carries a version.
	ErrNoVersion = errors.New("cannot determine version")
)

// MissingSourceError reports an install action whose source file is not
// in the extracted archive.
type MissingSourceError struct {
	Formula string
	Source  string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("%s: %s not found in archive", e.Formula, e.Source)
}

func (e *MissingSourceError) Is(target error) bool {
	return target == ErrMissingInstallSource
}

// Options control a single install.
type Options struct {
	// Force reinstalls a version that is already installed.
	Force bool
}

// Installer installs formulae into a prefix.
type Installer struct {
	Layout  Layout
	Fetcher *fetch.Fetcher
	Store   *store.Store
	Logger  *zap.Logger

	// Keyring is an armored OpenPGP public keyring used to check formulae
	// that declare a signature. Empty disables signature checks.
	Keyring string
}

// New returns an Installer for layout.
func New(layout Layout, fetcher *fetch.Fetcher, st *store.Store, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{
		Layout:  layout,
		Fetcher: fetcher,
		Store:   st,
		Logger:  logger.Named("install"),
	}
}

// Install installs f and returns the recorded keg.
func (i *Installer) Install(ctx context.Context, f *formula.Formula, opts Options) (*store.Keg, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid formula %s: %w", f.Name, err)
	}
	version := f.DerivedVersion()
	if version == "" {
		return nil, fmt.Errorf("%s: %w from %s; declare a version", f.Name, ErrNoVersion, f.URL)
	}
	log := i.Logger.With(zap.String("formula", f.Name), zap.String("version", version))

	previous, err := i.Store.GetKeg(f.Name)
	switch {
	case errors.Is(err, store.ErrNotInstalled):
		previous = nil
	case err != nil:
		return nil, err
	case previous.Version == version && !opts.Force:
		return nil, fmt.Errorf("%s %s: %w", f.Name, version, ErrAlreadyInstalled)
	}

	keg, err := i.install(ctx, f, version, previous, log)
	if err != nil {
		i.record(&store.Event{Formula: f.Name, Action: store.ActionFailed, Version: version, Detail: err.Error()})
		return nil, err
	}
	i.record(&store.Event{Formula: f.Name, Action: store.ActionInstall, Version: version, Detail: f.SHA256})
	log.Info("installed", zap.String("keg", keg.Path), zap.Strings("links", keg.Links))
	return keg, nil
}

func (i *Installer) install(ctx context.Context, f *formula.Formula, version string, previous *store.Keg, log *zap.Logger) (*store.Keg, error) {
	archivePath, err := i.Fetcher.Fetch(ctx, f)
	if err != nil {
		return nil, err
	}

	staging := filepath.Join(i.Layout.Staging(), f.Name+"-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if f.Signature != "" {
		if err := i.checkSignature(ctx, f, archivePath, staging, log); err != nil {
			return nil, err
		}
	}

	srcDir := filepath.Join(staging, "src")
	if err := archive.Extract(archivePath, srcDir); err != nil {
		return nil, err
	}
	root, err := archive.Root(srcDir)
	if err != nil {
		return nil, err
	}

	// Check every source before copying anything.
	for _, a := range f.Install {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(a.Source)))
		if err != nil || !info.Mode().IsRegular() {
			return nil, &MissingSourceError{Formula: f.Name, Source: a.Source}
		}
	}

	stagedKeg := filepath.Join(staging, "keg")
	rcpt := receipt.New(f.Name, version, receipt.Source{URL: f.URL, SHA256: f.SHA256})
	rcpt.License = f.License
	for _, a := range f.Install {
		rel := filepath.Join(a.Dir, a.Target)
		if err := copyExecutable(filepath.Join(root, filepath.FromSlash(a.Source)), filepath.Join(stagedKeg, rel)); err != nil {
			return nil, err
		}
		rcpt.Files[a.Target] = filepath.ToSlash(rel)
		log.Debug("staged", zap.String("source", a.Source), zap.String("target", rel))
	}
	if err := receipt.Write(stagedKeg, rcpt); err != nil {
		return nil, err
	}

	kegDir := i.Layout.Keg(f.Name, version)
	if err := os.MkdirAll(filepath.Dir(kegDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cellar directory: %w", err)
	}

	// A keg of the same version is parked in staging until the new one is
	// linked and recorded; the staging cleanup then discards it.
	parked := filepath.Join(staging, "previous")
	hasParked := false
	if _, err := os.Lstat(kegDir); err == nil {
		if err := os.Rename(kegDir, parked); err != nil {
			return nil, fmt.Errorf("failed to move aside keg %s: %w", kegDir, err)
		}
		hasParked = true
	}
	restore := func() {
		os.RemoveAll(kegDir)
		if hasParked {
			if err := os.Rename(parked, kegDir); err != nil {
				log.Error("failed to restore keg", zap.String("keg", kegDir), zap.Error(err))
			}
		}
	}
	if err := os.Rename(stagedKeg, kegDir); err != nil {
		restore()
		return nil, fmt.Errorf("failed to move keg into place: %w", err)
	}

	rollback := func() {
		restore()
		if previous != nil {
			i.relink(previous, log)
		}
	}

	// Every link of the previous install goes, including targets the new
	// formula renamed or dropped.
	if previous != nil {
		if _, err := link.Unlink(i.Layout.Bin(), previous.Path); err != nil {
			rollback()
			return nil, err
		}
	}

	files := make(map[string]string, len(rcpt.Files))
	for name, rel := range rcpt.Files {
		files[name] = filepath.Join(kegDir, filepath.FromSlash(rel))
	}
	links, err := link.Link(i.Layout.Bin(), files)
	if err != nil {
		rollback()
		return nil, err
	}

	keg := &store.Keg{
		Name:        f.Name,
		Version:     version,
		URL:         f.URL,
		SHA256:      f.SHA256,
		License:     f.License,
		Path:        kegDir,
		InstalledAt: rcpt.InstalledAt,
		Files:       rcpt.Files,
		Links:       links,
	}
	if err := i.Store.PutKeg(keg); err != nil {
		if _, uerr := link.Unlink(i.Layout.Bin(), kegDir); uerr != nil {
			log.Error("failed to remove links", zap.Error(uerr))
		}
		rollback()
		return nil, err
	}

	if previous != nil && previous.Path != kegDir {
		if err := os.RemoveAll(previous.Path); err != nil {
			log.Warn("failed to remove previous keg", zap.String("keg", previous.Path), zap.Error(err))
		}
	}
	return keg, nil
}

func (i *Installer) checkSignature(ctx context.Context, f *formula.Formula, archivePath, staging string, log *zap.Logger) error {
	if i.Keyring == "" {
		log.Warn("formula declares a signature but no keyring is configured; skipping check")
		return nil
	}
	sigPath := filepath.Join(staging, "archive.sig")
	if err := i.Fetcher.Save(ctx, f.Signature, sigPath); err != nil {
		return fmt.Errorf("failed to fetch signature: %w", err)
	}
	signer, err := signature.VerifyDetached(i.Keyring, archivePath, sigPath)
	if err != nil {
		return err
	}
	log.Info("signature verified", zap.String("signer", signer))
	return nil
}

// relink restores the links of a keg after a failed upgrade.
func (i *Installer) relink(k *store.Keg, log *zap.Logger) {
	files := make(map[string]string, len(k.Files))
	for name, rel := range k.Files {
		files[name] = filepath.Join(k.Path, filepath.FromSlash(rel))
	}
	if _, err := link.Link(i.Layout.Bin(), files); err != nil {
		log.Error("failed to restore links of previous keg", zap.String("keg", k.Path), zap.Error(err))
	}
}

// Uninstall unlinks and removes the keg installed for name.
func (i *Installer) Uninstall(name string) (*store.Keg, error) {
	keg, err := i.Store.GetKeg(name)
	if err != nil {
		return nil, err
	}

	n, err := link.Unlink(i.Layout.Bin(), keg.Path)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(keg.Path); err != nil {
		return nil, fmt.Errorf("failed to remove keg %s: %w", keg.Path, err)
	}
	// Drop the formula directory once its last version is gone.
	os.Remove(filepath.Dir(keg.Path))

	if err := i.Store.DeleteKeg(name); err != nil {
		return nil, err
	}
	i.record(&store.Event{Formula: name, Action: store.ActionUninstall, Version: keg.Version})
	i.Logger.Info("uninstalled", zap.String("formula", name), zap.Int("links_removed", n))
	return keg, nil
}

// Verify downloads the archive of f again, bypassing the cache, and checks
// it against the declared digest. It returns the computed digest.
func (i *Installer) Verify(ctx context.Context, f *formula.Formula) (string, error) {
	actual, err := i.Fetcher.Digest(ctx, f.URL)
	if err != nil {
		return "", err
	}
	if err := checksum.Compare(f.URL, f.SHA256, actual); err != nil {
		return actual, err
	}
	return actual, nil
}

func (i *Installer) record(e *store.Event) {
	if _, err := i.Store.InsertEvent(e); err != nil {
		i.Logger.Warn("failed to record event", zap.String("action", e.Action), zap.Error(err))
	}
}

func copyExecutable(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("open dest: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile honours umask; installed files are always executable.
	return os.Chmod(dst, 0755)
}
