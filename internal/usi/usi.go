// Package usi parses and renders Universal Spectrum Identifiers.
//
// The grammar is the colon-delimited PSI form:
//
//	mzspec:<collection>:<run>:<index type>:<index value>[:<interpretation>]
//
// Parsing performs no I/O and never consults the file system.
package usi

import (
	"strconv"
	"strings"

	"github.com/kwehner/mzusi/internal/errors"
)

// Preamble is the fixed first segment of every USI.
const Preamble = "mzspec"

// IndexType identifies how a USI addresses a spectrum within a run.
type IndexType string

const (
	IndexScan     IndexType = "scan"     // 1-based vendor scan number
	IndexOrdinal  IndexType = "index"    // 0-based position in the spectrum list
	IndexNativeID IndexType = "nativeId" // backend-native spectrum identifier
)

// USI is a parsed Universal Spectrum Identifier. Immutable once parsed.
type USI struct {
	Collection     string
	Run            string
	IndexType      IndexType
	IndexValue     string
	Interpretation string // optional peptidoform/charge segment, empty if absent
}

// Parse parses a USI string into its structured fields.
func Parse(s string) (USI, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 5 {
		return USI{}, errors.NewMalformedUSI(s, "expected at least 5 colon-separated segments")
	}
	if parts[0] != Preamble {
		return USI{}, errors.NewMalformedUSI(s, "must begin with \"mzspec\"")
	}

	u := USI{
		Collection: parts[1],
		Run:        parts[2],
		IndexType:  IndexType(parts[3]),
		IndexValue: parts[4],
	}
	if len(parts) > 5 {
		// The interpretation segment may itself contain colons
		// (e.g. crosslinked peptidoforms), so rejoin the tail.
		u.Interpretation = strings.Join(parts[5:], ":")
	}

	if u.Collection == "" {
		return USI{}, errors.NewMalformedUSI(s, "empty collection identifier")
	}
	if u.Run == "" {
		return USI{}, errors.NewMalformedUSI(s, "empty run identifier")
	}
	if u.IndexValue == "" {
		return USI{}, errors.NewMalformedUSI(s, "empty index value")
	}

	switch u.IndexType {
	case IndexScan:
		n, err := strconv.Atoi(u.IndexValue)
		if err != nil || n < 1 {
			return USI{}, errors.NewMalformedUSI(s, "scan number must be a positive integer")
		}
	case IndexOrdinal:
		n, err := strconv.Atoi(u.IndexValue)
		if err != nil || n < 0 {
			return USI{}, errors.NewMalformedUSI(s, "index must be a non-negative integer")
		}
	case IndexNativeID:
		// Opaque, validated by the backend that resolves it.
	default:
		return USI{}, errors.NewMalformedUSI(s, "unknown index type "+strconv.Quote(parts[3]))
	}

	return u, nil
}

// String renders the USI back to its canonical form. For every USI accepted
// by Parse, Parse(u.String()) yields the same structured fields.
func (u USI) String() string {
	segs := []string{Preamble, u.Collection, u.Run, string(u.IndexType), u.IndexValue}
	if u.Interpretation != "" {
		segs = append(segs, u.Interpretation)
	}
	return strings.Join(segs, ":")
}

// Ordinal returns the 0-based spectrum list position a scan or index USI
// addresses. Scan numbers are 1-based, so scan N maps to position N-1.
// Returns false for nativeId addressing.
func (u USI) Ordinal() (int, bool) {
	switch u.IndexType {
	case IndexScan:
		n, err := strconv.Atoi(u.IndexValue)
		if err != nil {
			return 0, false
		}
		return n - 1, true
	case IndexOrdinal:
		n, err := strconv.Atoi(u.IndexValue)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
