package persist

import (
	"log/slog"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"

	"github.com/soocke/maskbot-go/domain/annotate"
	"github.com/soocke/maskbot-go/domain/mask"
)

// Stats counts what a Sink has written.
type Stats struct {
	Masks int
	Bytes int64
	Rows  int
}

// Options configure a Sink. Store is optional.
type Options struct {
	Encoder     Encoder
	Compression int
	CSVPath     string
	Store       *Store
	Logger      *slog.Logger
}

// Sink writes masks through an Encoder and the metadata table to CSV and,
// when configured, SQLite.
type Sink struct {
	enc         Encoder
	compression int
	csvPath     string
	store       *Store
	logger      *slog.Logger
	stats       Stats
}

// NewSink builds a Sink; a nil Encoder selects DefaultEncoder.
func NewSink(opts Options) *Sink {
	s := &Sink{
		enc:         opts.Encoder,
		compression: opts.Compression,
		csvPath:     opts.CSVPath,
		store:       opts.Store,
		logger:      opts.Logger,
	}
	if s.enc == nil {
		s.enc = DefaultEncoder()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// WriteMask encodes one mask file.
func (s *Sink) WriteMask(path string, m *mask.Mask) error {
	n, err := s.enc.Encode(path, m, s.compression)
	if err != nil {
		return &annotate.PersistenceError{Path: path, Err: err}
	}
	s.stats.Masks++
	s.stats.Bytes += n
	s.logger.Debug("mask written", "path", path, "size", humanize.Bytes(uint64(n)), "area", m.Area())
	return nil
}

// WriteMetadata rewrites the CSV table, then the SQLite mirror.
func (s *Sink) WriteMetadata(rows []annotate.Metadata) error {
	if err := WriteCSV(s.csvPath, rows); err != nil {
		return &annotate.PersistenceError{Path: s.csvPath, Err: err}
	}
	if s.store != nil {
		if err := s.store.Replace(rows); err != nil {
			return &annotate.PersistenceError{Path: s.store.Path(), Err: err}
		}
	}
	s.stats.Rows = len(rows)
	s.logger.Info("metadata written", "path", s.csvPath, "rows", humanize.Comma(int64(len(rows))), "sqlite", s.store != nil)
	return nil
}

// Stats returns the running totals.
func (s *Sink) Stats() Stats { return s.stats }

// Close releases the SQLite mirror, if any.
func (s *Sink) Close() error {
	var err error
	if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}
	return err
}
