// Package catalog stores known devices' register maps in SQLite and
// answers address containment queries for the matcher. The schema is the
// one chiprec databases have always used, so existing catalogs keep
// working.
package catalog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/erdnaxe/chiprec/internal/svd"
)

const schema = `
CREATE TABLE IF NOT EXISTS "device" (
    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    device_name TEXT NOT NULL,
    device_vendor TEXT,
    svd_filename TEXT NOT NULL,
    UNIQUE(device_name)
);
CREATE TABLE IF NOT EXISTS "peripheral" (
    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    device_id INTEGER,
    peripheral_name TEXT NOT NULL,
    peripheral_address INTEGER NOT NULL,
    FOREIGN KEY(device_id) REFERENCES device(id),
    UNIQUE(peripheral_name, device_id)
);
CREATE TABLE IF NOT EXISTS "register" (
    id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    peripheral_id INTEGER,
    register_name TEXT NOT NULL,
    register_access TEXT NOT NULL,
    register_address INTEGER NOT NULL,
    register_size INTEGER NOT NULL,
    FOREIGN KEY(peripheral_id) REFERENCES peripheral(id),
    UNIQUE(register_name, peripheral_id)
);
CREATE INDEX IF NOT EXISTS "register_register_address_idx" ON register(register_address);
`

// Catalog is a handle on the device database. Safe for concurrent
// readers; imports must not run concurrently with themselves.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) a catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// Init creates the schema. Safe to call on an existing catalog.
func (c *Catalog) Init() error {
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("init catalog schema: %w", err)
	}
	return nil
}

// RegisterHit is one register whose byte range contains a queried
// address, with enough context to credit its device.
type RegisterHit struct {
	DeviceID   int64
	Peripheral string
	Register   string
}

// LookupByAddress returns every register whose range [address,
// address+size/8) contains addr. The register_address+32 clause narrows
// the index scan before the exact size-based containment test, which is
// the authoritative one.
func (c *Catalog) LookupByAddress(addr uint32) ([]RegisterHit, error) {
	rows, err := c.db.Query(
		`SELECT device_id, peripheral_name, register_name
		 FROM register
		 JOIN peripheral ON peripheral_id == peripheral.id
		 WHERE register_address <= ?1
		 AND register_address + 32 > ?1
		 AND register_address + register_size / 8 > ?1`,
		int64(addr))
	if err != nil {
		return nil, fmt.Errorf("lookup address 0x%08x: %w", addr, err)
	}
	defer rows.Close()

	var hits []RegisterHit
	for rows.Next() {
		var h RegisterHit
		if err := rows.Scan(&h.DeviceID, &h.Peripheral, &h.Register); err != nil {
			return nil, fmt.Errorf("lookup address 0x%08x: %w", addr, err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Device identifies one catalog entry for presentation.
type Device struct {
	ID      int64
	Name    string
	Vendor  string
	SVDFile string
}

// Device returns the identity of a device by id.
func (c *Catalog) Device(id int64) (Device, error) {
	d := Device{ID: id}
	err := c.db.QueryRow(
		`SELECT device_name, device_vendor, svd_filename FROM device WHERE id == ?`, id).
		Scan(&d.Name, &d.Vendor, &d.SVDFile)
	if err != nil {
		return Device{}, fmt.Errorf("device %d: %w", id, err)
	}
	return d, nil
}

// Import inserts one parsed SVD device in a single transaction. All
// inserts use INSERT OR IGNORE, so importing the same file again adds no
// rows.
func (c *Catalog) Import(dev *svd.Device) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("import %s: %w", dev.SVDFile, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO device (device_name, device_vendor, svd_filename) VALUES (?, ?, ?)`,
		dev.Name, dev.Vendor, dev.SVDFile); err != nil {
		return fmt.Errorf("import %s: %w", dev.SVDFile, err)
	}
	var deviceID int64
	if err := tx.QueryRow(`SELECT id FROM device WHERE device_name = ?`, dev.Name).Scan(&deviceID); err != nil {
		return fmt.Errorf("import %s: %w", dev.SVDFile, err)
	}

	for _, p := range dev.Peripherals {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO peripheral (device_id, peripheral_name, peripheral_address) VALUES (?, ?, ?)`,
			deviceID, p.Name, int64(p.Address)); err != nil {
			return fmt.Errorf("import %s/%s: %w", dev.SVDFile, p.Name, err)
		}
		var peripheralID int64
		if err := tx.QueryRow(
			`SELECT id FROM peripheral WHERE peripheral_name = ? AND device_id = ?`,
			p.Name, deviceID).Scan(&peripheralID); err != nil {
			return fmt.Errorf("import %s/%s: %w", dev.SVDFile, p.Name, err)
		}

		for _, r := range p.Registers {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO register (peripheral_id, register_name, register_access, register_address, register_size)
				 VALUES (?, ?, ?, ?, ?)`,
				peripheralID, r.Name, r.Access, int64(r.Address), r.SizeBits); err != nil {
				return fmt.Errorf("import %s/%s/%s: %w", dev.SVDFile, p.Name, r.Name, err)
			}
		}
	}

	return tx.Commit()
}
