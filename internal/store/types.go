package store

import "time"

// Keg is an installed formula version as recorded in the database.
type Keg struct {
	Name        string
	Version     string
	URL         string
	SHA256      string
	License     string
	Path        string
	InstalledAt time.Time

	// Files maps each installed name to its path relative to the keg.
	Files map[string]string

	// Links holds the absolute bin path entries pointing into the keg.
	Links []string
}

// Event actions.
const (
	ActionInstall   = "install"
	ActionUninstall = "uninstall"
	ActionFailed    = "failed"
	ActionAdopt     = "adopt"
)

// Event is one entry of the install history.
type Event struct {
	ID        int64
	Formula   string
	Action    string
	Version   string
	Detail    string
	Timestamp time.Time
}
