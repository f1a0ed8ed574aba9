package detect

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/secreport/pkg/parsers"
)

// Validate fully parses path as t. Unlike Detect it reads the whole file.
func (d *Detector) Validate(path string, t parsers.ScanType) error {
	_, err := parsers.ParseWithWarnings(t, path, d.logger)
	return err
}

type FileInfo struct {
	Path       string
	Size       int64
	ModTime    time.Time
	Extension  string
	MimeType   string
	Type       parsers.ScanType
	Confidence Confidence
	Valid      bool
}

// Info reports file metadata together with detection and validation
// results.
func (d *Detector) Info(path string) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	info := FileInfo{
		Path:      path,
		Size:      st.Size(),
		ModTime:   st.ModTime(),
		Extension: ext,
		MimeType:  mime.TypeByExtension(ext),
	}

	res := d.Detect(path)
	info.Type = res.Type
	info.Confidence = res.Confidence
	if res.Type != "" {
		info.Valid = d.Validate(path, res.Type) == nil
	}
	return info, nil
}
