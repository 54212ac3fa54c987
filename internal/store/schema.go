package store

const schema = `
CREATE TABLE IF NOT EXISTS kegs (
    name TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    url TEXT NOT NULL,
    sha256 TEXT NOT NULL,
    license TEXT,
    keg_path TEXT NOT NULL,
    installed_at TIMESTAMP NOT NULL,
    files TEXT NOT NULL,
    links TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    formula TEXT NOT NULL,
    action TEXT NOT NULL,
    version TEXT,
    detail TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_formula ON events(formula);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
`
