package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Footprint returns the bytes used on disk by the database (including its WAL and
// shared-memory sidecar files) and by the search index directory.
// Paths that do not exist contribute 0.
func Footprint(databasePath, indexPath string) (int64, error) {
	var total int64
	for _, p := range []string{databasePath, databasePath + "-wal", databasePath + "-shm", indexPath} {
		if p == "" || p == "-wal" || p == "-shm" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func pathSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
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
	return total, err
}
