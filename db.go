package sffkit

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Preview kinds stored in the database.
const (
	KindPortrait = "portrait"
	KindStage    = "stage"
)

// PreviewDB caches extracted previews keyed by archive CRC, so a
// rescan never has to parse an unchanged archive twice.
type PreviewDB struct {
	db *sql.DB
}

func OpenPreviewDB(file string) (*PreviewDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS preview (id INTEGER PRIMARY KEY NOT NULL, crc TEXT NOT NULL, kind TEXT NOT NULL, png BLOB NOT NULL, UNIQUE(crc, kind))"); err != nil {
		return nil, err
	}

	return &PreviewDB{
		db: db,
	}, nil
}

func (d *PreviewDB) Close() error {
	return d.db.Close()
}

// Put stores the PNG-encoded preview for the given archive CRC,
// replacing any previous entry of the same kind.
func (d *PreviewDB) Put(crc, kind string, png []byte) error {
	_, err := d.db.Exec("INSERT OR REPLACE INTO preview (crc, kind, png) VALUES (?, ?, ?)", crc, kind, png)
	return err
}

// Find returns the cached preview for the given CRC, preferring a
// portrait over a stage thumbnail, or nil when nothing is cached.
func (d *PreviewDB) Find(crc string) ([]byte, error) {
	var png []byte
	switch err := d.db.QueryRow("SELECT png FROM preview WHERE crc = ? ORDER BY kind = ? DESC LIMIT 1", crc, KindPortrait).Scan(&png); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return png, nil
	default:
		return nil, err
	}
}
