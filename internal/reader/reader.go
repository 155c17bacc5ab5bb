// Package reader defines the capability interface every raw-format backend
// implements, and dispatches a located file to the right backend.
//
// Backends are closed, independently testable units selected by format tag;
// the pipeline never touches a container format directly.
package reader

import (
	"context"
	"fmt"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/locate"
	"github.com/kwehner/mzusi/internal/reader/mzml"
	"github.com/kwehner/mzusi/internal/reader/tdf"
	"github.com/kwehner/mzusi/internal/reader/thermo"
	"github.com/kwehner/mzusi/internal/spectrum"
	"github.com/kwehner/mzusi/internal/usi"
)

// Options carries per-call reader configuration.
type Options struct {
	// MetadataOnly skips peak loading; backends return scan metadata with
	// empty peak arrays.
	MetadataOnly bool
	// ThermoHelper is the external converter executable the vendor-RAW
	// backend delegates to.
	ThermoHelper string
}

// RunHandle is a scoped lease on an open run. Close must be called on every
// exit path; FetchSpectrum must not be used after Close.
type RunHandle interface {
	// FetchSpectrum fetches one spectrum addressed by the USI's index.
	FetchSpectrum(ctx context.Context, ident usi.USI) (*spectrum.RawSpectrum, error)
	Close() error
}

// Reader is the capability a raw-format backend provides.
type Reader interface {
	// Available performs the backend's presence check. A backend whose
	// external runtime or driver is missing reports BACKEND_UNAVAILABLE
	// here rather than failing mid-fetch.
	Available() error
	// OpenRun opens a located run for spectrum fetches.
	OpenRun(ctx context.Context, path string) (RunHandle, error)
}

// backend adapts a concrete format package to the Reader capability.
type backend struct {
	available func() error
	open      func(ctx context.Context, path string) (RunHandle, error)
}

func (b backend) Available() error { return b.available() }

func (b backend) OpenRun(ctx context.Context, path string) (RunHandle, error) {
	return b.open(ctx, path)
}

// For returns the backend for a detected format.
func For(format locate.Format, opts Options) (Reader, error) {
	switch format {
	case locate.FormatMzML:
		r := mzml.New(mzml.Options{MetadataOnly: opts.MetadataOnly})
		return backend{
			available: r.Available,
			open: func(ctx context.Context, path string) (RunHandle, error) {
				h, err := r.OpenRun(ctx, path)
				if err != nil {
					return nil, err
				}
				return h, nil
			},
		}, nil
	case locate.FormatThermoRaw:
		r := thermo.New(thermo.Options{Helper: opts.ThermoHelper, MetadataOnly: opts.MetadataOnly})
		return backend{
			available: r.Available,
			open: func(ctx context.Context, path string) (RunHandle, error) {
				h, err := r.OpenRun(ctx, path)
				if err != nil {
					return nil, err
				}
				return h, nil
			},
		}, nil
	case locate.FormatBrukerTDF:
		r := tdf.New(tdf.Options{MetadataOnly: opts.MetadataOnly})
		return backend{
			available: r.Available,
			open: func(ctx context.Context, path string) (RunHandle, error) {
				h, err := r.OpenRun(ctx, path)
				if err != nil {
					return nil, err
				}
				return h, nil
			},
		}, nil
	default:
		return nil, errors.NewInternal(fmt.Errorf("no backend for format %q", format))
	}
}
