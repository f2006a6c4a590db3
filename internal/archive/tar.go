// Package archive bundles rendered files into a tar.gz for offline review.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"
)

// Entry is one file in a bundle.
type Entry struct {
	Name string // slash-separated path inside the archive
	Data []byte
	Mode os.FileMode
}

// NewWriter returns a gzip+tar writer wrapping w.
// The caller must close both the returned *tar.Writer and *gzip.Writer.
func NewWriter(w io.Writer) (*tar.Writer, *gzip.Writer) {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)
	return tw, gw
}

// AddBytes adds a regular file with the given content.
func AddBytes(tw *tar.Writer, name string, data []byte, mode os.FileMode, modTime time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     int64(mode.Perm()),
		Size:     int64(len(data)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// WriteBundle writes entries as a tar.gz to w, sorted by name, under prefix.
// Directory headers are emitted for every parent so the archive unpacks cleanly.
func WriteBundle(w io.Writer, prefix string, entries []Entry, modTime time.Time) error {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	tw, gw := NewWriter(w)
	dirs := map[string]bool{}
	for _, e := range sorted {
		name := path.Join(prefix, strings.TrimPrefix(e.Name, "/"))
		if strings.HasPrefix(name, "../") || name == ".." {
			return fmt.Errorf("entry %q escapes the archive root", e.Name)
		}
		for _, d := range parents(name) {
			if dirs[d] {
				continue
			}
			dirs[d] = true
			hdr := &tar.Header{Name: d + "/", Mode: 0755, Typeflag: tar.TypeDir, ModTime: modTime}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
		}
		if err := AddBytes(tw, name, e.Data, e.Mode, modTime); err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

// parents returns the ancestor directories of name, outermost first.
func parents(name string) []string {
	var out []string
	for d := path.Dir(name); d != "." && d != "/"; d = path.Dir(d) {
		out = append([]string{d}, out...)
	}
	return out
}
