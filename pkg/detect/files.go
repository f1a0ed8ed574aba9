package detect

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/user/secreport/pkg/parsers"
)

// ScanFile is a file FindScanFiles could classify.
type ScanFile struct {
	Path       string
	Type       parsers.ScanType
	Confidence Confidence
}

// FindScanFiles walks dir in lexical order and returns every regular file
// with a detected type. Hidden directories are skipped; subdirectories are
// only entered when recursive is set.
func (d *Detector) FindScanFiles(dir string, recursive bool) ([]ScanFile, error) {
	var out []ScanFile
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			d.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if entry.IsDir() {
			if path == dir {
				return nil
			}
			if !recursive || strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		res := d.Detect(path)
		if res.Type == "" {
			d.logger.Debug("no scan type detected", "path", path)
			return nil
		}
		out = append(out, ScanFile{Path: path, Type: res.Type, Confidence: res.Confidence})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
