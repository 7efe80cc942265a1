package export

import (
	"archive/zip"
	"io"
	"sort"
	"time"
)

// WriteZip writes a rendered bundle as a zip archive. Entries are ordered by
// name so the same bundle always produces the same layout.
func WriteZip(w io.Writer, files map[string]string) error {
	zw := zip.NewWriter(w)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	for _, name := range names {
		h := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: now,
		}
		fw, err := zw.CreateHeader(h)
		if err != nil {
			_ = zw.Close()
			return err
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}
