package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// sqliteSidecars are the files SQLite keeps next to a WAL-mode database.
var sqliteSidecars = []string{"", "-wal", "-shm"}

// Usage is the on-disk footprint of the analysis history.
type Usage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	IndexBytes    int64 `json:"index_bytes"`
}

// Total is the combined size of the database and the search index.
func (u Usage) Total() int64 { return u.DatabaseBytes + u.IndexBytes }

// MeasureUsage sizes the SQLite database, including its WAL and shared
// memory files, and the Bleve index directory. A path that does not exist
// counts as zero.
func MeasureUsage(databasePath, indexPath string) (Usage, error) {
	var u Usage
	if databasePath != "" {
		for _, suffix := range sqliteSidecars {
			n, err := fileSize(databasePath + suffix)
			if err != nil {
				return Usage{}, err
			}
			u.DatabaseBytes += n
		}
	}
	if indexPath != "" {
		n, err := treeSize(indexPath)
		if err != nil {
			return Usage{}, err
		}
		u.IndexBytes = n
	}
	return u, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return treeSize(path)
	}
	return info.Size(), nil
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
