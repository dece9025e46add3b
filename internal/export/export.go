// Package export reads and writes annotation sets as JSON files, gzipped
// when the file name ends in ".gz".
package export

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/markerview/pkg/core"
)

// ErrEmptyFile is returned when an annotation file holds no data.
var ErrEmptyFile = errors.New("annotation file is empty")

// GzipSuffix marks compressed annotation files.
const GzipSuffix = ".gz"

// Compressed reports whether path names a gzipped file.
func Compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), GzipSuffix)
}

// FileName builds a file name for an annotation set saved at t.
func FileName(base string, t time.Time, compress bool) string {
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.ReplaceAll(base, ":", "_")
	if base == "" {
		base = "annotations"
	}
	name := fmt.Sprintf("%s_%s.json", base, t.Format("20060102_150405"))
	if compress {
		name += GzipSuffix
	}
	return name
}

// Encode writes set to w as one JSON document.
func Encode(w io.Writer, set core.AnnotationSet) error {
	if set.Markers == nil {
		set.Markers = []core.MarkerState{}
	}
	if err := json.NewEncoder(w).Encode(set); err != nil {
		return fmt.Errorf("encoding annotation set: %w", err)
	}
	return nil
}

// Decode reads one annotation set from r.
func Decode(r io.Reader) (core.AnnotationSet, error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err == io.EOF {
		return core.AnnotationSet{}, ErrEmptyFile
	}
	var set core.AnnotationSet
	if err := json.NewDecoder(br).Decode(&set); err != nil {
		return core.AnnotationSet{}, fmt.Errorf("decoding annotation set: %w", err)
	}
	return set, nil
}

// WriteFile writes set to path, creating the parent directory.
func WriteFile(path string, set core.AnnotationSet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !Compressed(path) {
		if err := Encode(f, set); err != nil {
			return err
		}
		return f.Close()
	}

	gzWriter := gzip.NewWriter(f)
	if err := Encode(gzWriter, set); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return f.Close()
}

// ReadFile reads the annotation set stored at path.
func ReadFile(path string) (core.AnnotationSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.AnnotationSet{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return core.AnnotationSet{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() == 0 {
		return core.AnnotationSet{}, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	var r io.Reader = f
	if Compressed(path) {
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return core.AnnotationSet{}, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gzReader.Close()
		r = gzReader
	}

	set, err := Decode(r)
	if err != nil {
		return core.AnnotationSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
