package pipeline

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
)

// Scanner is a stream of OSM records. Both osmxml.Scanner and
// osmpbf.Scanner satisfy it.
type Scanner interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Close() error
}

// Format identifies the encoding of an input file.
type Format int

const (
	FormatXML Format = iota
	FormatPBF
)

func (f Format) String() string {
	if f == FormatPBF {
		return "pbf"
	}
	return "xml"
}

// Compression identifies an outer compression layer of an XML input.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
)

// DetectFormat picks the decoder from the file name: *.pbf is PBF, anything
// else is XML, optionally wrapped in gzip (.gz) or bzip2 (.bz2).
func DetectFormat(path string) (Format, Compression) {
	name := strings.ToLower(filepath.Base(path))

	compression := CompressionNone
	switch {
	case strings.HasSuffix(name, ".gz"):
		compression = CompressionGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".bz2"):
		compression = CompressionBzip2
		name = strings.TrimSuffix(name, ".bz2")
	}

	if strings.HasSuffix(name, ".pbf") {
		return FormatPBF, compression
	}
	return FormatXML, compression
}

// Input is an open OSM file. PBF header bounds are emitted as the first
// record, so callers see bounds the same way for both formats.
type Input struct {
	Scanner
	Path   string
	Format Format
	Size   int64

	file    *os.File
	counter *countingReader
	decomp  io.Closer
	pending osm.Object
	started bool
}

// OpenInput opens path and returns a record stream for it.
func OpenInput(ctx context.Context, path string) (*Input, error) {
	format, compression := DetectFormat(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}

	in := &Input{
		Path:    path,
		Format:  format,
		Size:    info.Size(),
		file:    f,
		counter: &countingReader{r: f},
	}

	var r io.Reader = in.counter
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		in.decomp = gz
		r = gz
	case CompressionBzip2:
		r = bzip2.NewReader(r)
	}

	switch format {
	case FormatPBF:
		scanner := osmpbf.New(ctx, r, runtime.NumCPU())
		scanner.SkipRelations = true
		header, err := scanner.Header()
		if err != nil {
			scanner.Close()
			in.closeFiles()
			return nil, fmt.Errorf("failed to read pbf header: %w", err)
		}
		if header != nil && header.Bounds != nil {
			in.pending = header.Bounds
		}
		in.Scanner = scanner
	default:
		in.Scanner = osmxml.New(ctx, r)
	}

	return in, nil
}

// Scan advances to the next record.
func (in *Input) Scan() bool {
	if !in.started {
		in.started = true
		if in.pending != nil {
			return true
		}
	}
	in.pending = nil
	return in.Scanner.Scan()
}

// Object returns the current record.
func (in *Input) Object() osm.Object {
	if in.pending != nil {
		return in.pending
	}
	return in.Scanner.Object()
}

// BytesRead returns how much of the file on disk has been consumed.
func (in *Input) BytesRead() int64 {
	return in.counter.n.Load()
}

// Close stops the scanner and closes the file.
func (in *Input) Close() error {
	err := in.Scanner.Close()
	if cerr := in.closeFiles(); err == nil {
		err = cerr
	}
	return err
}

func (in *Input) closeFiles() error {
	if in.decomp != nil {
		in.decomp.Close()
	}
	return in.file.Close()
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
