// Package archive writes the CSV summaries and zip bundles handed to users.
package archive

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// utf8BOM lets spreadsheet software detect the encoding of the CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Entry is one file added to a zip under Name.
type Entry struct {
	Name string
	Path string
}

// WriteCSV writes header and rows to path as UTF-8 with a BOM.
func WriteCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// Zip creates dest containing every entry. Missing source files are reported
// back so the caller can decide whether that is fatal.
func Zip(dest string, entries []Entry) (missing []string, err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, e.Path)
				continue
			}
			zw.Close()
			return missing, fmt.Errorf("zip %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return missing, err
	}
	return missing, out.Close()
}

func addFile(zw *zip.Writer, e Entry) error {
	src, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate
	// Chinese names need the UTF-8 flag or most unzip tools mangle them
	hdr.Flags |= 0x800

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
