// Package locate finds the raw file backing a USI's run under an ordered
// set of file system prefixes.
//
// A run named in USI mzspec:<collection>:<run>:... is searched as
// <prefix>/<collection>/<run>* for each prefix in order. The first prefix
// with a match wins; later prefixes are shadowed.
package locate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/usi"
)

// Format identifies a supported raw-data container.
type Format string

const (
	FormatMzML      Format = "mzML"
	FormatThermoRaw Format = "thermo_raw"
	FormatBrukerTDF Format = "bruker_tdf"
)

// LocatedFile is a resolved run: an absolute path plus the detected format.
// Immutable once created.
type LocatedFile struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
}

// DetectFormats probes one prefix root for files backing the USI's run.
//
// Candidates are returned in probe order: longer file names first, so the
// most specific match leads. MGF files are skipped. A missing collection
// directory is an empty result, not an error; only I/O faults (permission
// and the like) fail.
func DetectFormats(root string, ident usi.USI) ([]LocatedFile, error) {
	dir := filepath.Join(root, ident.Collection)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewFormatProbe(dir, err)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return len(entries[a].Name()) > len(entries[b].Name())
	})

	var found []LocatedFile
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, ident.Run) {
			continue
		}
		path := filepath.Join(dir, name)
		format, ok := classify(path, name, entry.IsDir())
		if !ok {
			continue
		}
		found = append(found, LocatedFile{Path: path, Format: format})
	}
	return found, nil
}

// classify maps a directory entry onto a supported format.
func classify(path, name string, isDir bool) (Format, bool) {
	if isDir {
		// Bruker .d container: the sqlite index and its binary companion
		// must both be present.
		if hasFile(path, "analysis.tdf") && hasFile(path, "analysis.tdf_bin") {
			return FormatBrukerTDF, true
		}
		return "", false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mzml":
		return FormatMzML, true
	case ".raw":
		return FormatThermoRaw, true
	default:
		// .mgf and anything else unsupported is skipped, not an error.
		return "", false
	}
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}

// Resolve searches the prefixes in order and returns the located run.
//
// Precedence is deterministic: the first prefix with any candidate wins and
// shadows later prefixes. More than one format matching within a single
// prefix is an error rather than a silent choice; multiple files of the
// same format pick the longest name, matching probe order.
func Resolve(ident usi.USI, prefixes []string) (LocatedFile, error) {
	for _, prefix := range prefixes {
		candidates, err := DetectFormats(prefix, ident)
		if err != nil {
			return LocatedFile{}, err
		}
		if len(candidates) == 0 {
			continue
		}

		formats := map[Format]bool{}
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			formats[c.Format] = true
			names = append(names, filepath.Base(c.Path))
		}
		if len(formats) > 1 {
			return LocatedFile{}, errors.NewAmbiguousRun(prefix, ident.Run, names)
		}
		return candidates[0], nil
	}
	return LocatedFile{}, errors.NewRunNotFound(ident.Collection, ident.Run, prefixes)
}
