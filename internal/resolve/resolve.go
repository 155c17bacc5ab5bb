// Package resolve implements the USI resolution pipeline: parse, locate,
// read, condition, assemble. Every surface (CLI, HTTP, MCP) calls through
// the Service here so behavior cannot drift between them.
package resolve

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kwehner/mzusi/internal/config"
	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/locate"
	"github.com/kwehner/mzusi/internal/log"
	"github.com/kwehner/mzusi/internal/proxi"
	"github.com/kwehner/mzusi/internal/reader"
	"github.com/kwehner/mzusi/internal/spectrum"
	"github.com/kwehner/mzusi/internal/usi"
)

// Service resolves USIs against the configured prefixes. Safe for
// concurrent use.
type Service struct {
	cfg    *config.Config
	cache  *locate.Cache
	logger *log.Logger
}

// NewService creates a resolution service. A nil logger is replaced with a
// nop logger.
func NewService(cfg *config.Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{cfg: cfg, cache: locate.NewCache(), logger: logger}
}

// ResolveInput contains parameters for the Resolve operation.
type ResolveInput struct {
	// USI is the identifier to resolve. Required.
	USI string
	// Prefixes overrides the configured search prefixes when non-empty.
	Prefixes []string
	// MetadataOnly skips peak loading; the record reports PEAK UNAVAILABLE.
	MetadataOnly bool
}

// ResolveOutput contains the result of the Resolve operation.
type ResolveOutput struct {
	ResolutionID string             `json:"resolution_id"`
	File         locate.LocatedFile `json:"file"`
	Record       *proxi.Record      `json:"record"`
}

// Resolve turns one USI into a PROXI spectrum record.
func (s *Service) Resolve(ctx context.Context, input ResolveInput) (*ResolveOutput, error) {
	id := newResolutionID()
	logger := s.logger.WithResolution(id, input.USI)
	start := time.Now()

	ident, err := usi.Parse(input.USI)
	if err != nil {
		logger.Warn("usi rejected", zap.Error(err))
		return nil, err
	}

	lf, err := s.locateRun(ident, input.Prefixes)
	if err != nil {
		logger.Warn("run not located", zap.Error(err))
		return nil, err
	}
	logger.Debug("run located",
		zap.String("path", lf.Path),
		zap.String("format", string(lf.Format)))

	r, err := reader.For(lf.Format, reader.Options{
		MetadataOnly: input.MetadataOnly,
		ThermoHelper: s.cfg.ThermoHelper,
	})
	if err != nil {
		return nil, err
	}
	if err := r.Available(); err != nil {
		logger.Warn("backend unavailable", zap.Error(err))
		return nil, err
	}

	run, err := r.OpenRun(ctx, lf.Path)
	if err != nil {
		return nil, err
	}
	defer run.Close()

	raw, err := run.FetchSpectrum(ctx, ident)
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		return nil, err
	}

	status := proxi.StatusReadable
	var peaks spectrum.PeakList = raw
	switch {
	case input.MetadataOnly:
		status = proxi.StatusPeakUnavailable
	case raw.HasMobility():
		peaks = spectrum.MergeMobility(raw, s.cfg.MobilityMergeTolerancePPM)
	case !raw.Centroided:
		peaks = spectrum.Centroid(raw, s.cfg.CentroidSNR)
	}

	record, err := proxi.Assemble(ident, peaks, status)
	if err != nil {
		return nil, err
	}

	mzs, _ := peaks.Arrays()
	logger.Info("resolved",
		zap.String("format", string(lf.Format)),
		zap.Int("peaks", len(mzs)),
		zap.String("status", status),
		zap.Duration("elapsed", time.Since(start)))

	return &ResolveOutput{ResolutionID: id, File: lf, Record: record}, nil
}

// LocateInput contains parameters for the Locate operation.
type LocateInput struct {
	USI      string
	Prefixes []string
}

// LocateOutput contains the result of the Locate operation.
type LocateOutput struct {
	File locate.LocatedFile `json:"file"`
}

// Locate finds the run a USI names without opening it.
func (s *Service) Locate(input LocateInput) (*LocateOutput, error) {
	ident, err := usi.Parse(input.USI)
	if err != nil {
		return nil, err
	}
	lf, err := s.locateRun(ident, input.Prefixes)
	if err != nil {
		return nil, err
	}
	return &LocateOutput{File: lf}, nil
}

// InvalidateCache drops all cached run locations.
func (s *Service) InvalidateCache() {
	s.cache.Invalidate()
}

func (s *Service) locateRun(ident usi.USI, override []string) (locate.LocatedFile, error) {
	prefixes := override
	if len(prefixes) == 0 {
		prefixes = s.cfg.Prefixes
	}
	if len(prefixes) == 0 {
		return locate.LocatedFile{}, errors.NewInvalidRequest("no search prefixes configured")
	}
	if s.cfg.CacheDisabled {
		return locate.Resolve(ident, prefixes)
	}
	return s.cache.Resolve(ident, prefixes)
}

func newResolutionID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
