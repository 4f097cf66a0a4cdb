/*
Package sffkit maintains preview images extracted from SFF sprite
archives: character select portraits and stage thumbnails recovered by
the sff package, cached in a local database and indexed per directory.
*/
package sffkit

import "log"

type Manager struct {
	db     *PreviewDB
	logger *log.Logger
}

func New(db string, logger *log.Logger) (*Manager, error) {
	pdb, err := OpenPreviewDB(db)
	if err != nil {
		return nil, err
	}
	return &Manager{
		db:     pdb,
		logger: logger,
	}, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}
