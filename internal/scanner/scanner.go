// Package scanner implements chunked, overlap-aware scanning of arbitrary
// byte ranges in a layer.
//
// A matcher advertises a chunk size and an overlap. The scanner cuts every
// region into reads of chunk size plus overlap, advancing by chunk size
// only, so the last overlap bytes of each chunk are re-read at the head of
// the next one. Any match no longer than the overlap therefore lies
// entirely inside at least one chunk and cannot be lost to an internal
// read boundary. Regions come from a client-supplied source (for example a
// walk of a process's memory-region tree) and may be disjoint and in any
// order; the scanner only coordinates reads, it owns no memory.
package scanner

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marrow-forensics/marrow/internal/layer"
)

// Match is one matcher hit, offset local to the scanned slice.
type Match struct {
	Offset uint64
	Label  string
}

// Hit is one reported scan result, offset absolute within the layer the
// region named.
type Hit struct {
	LayerName string
	Offset    uint64
	Label     string
}

// Matcher is the pattern-matching capability consumed by the scanner.
type Matcher interface {
	// ChunkSize is how far the scan cursor advances per chunk. Must be
	// positive.
	ChunkSize() uint64
	// Overlap is how many trailing bytes are re-read in the next chunk.
	// Must be smaller than ChunkSize. Matches longer than the overlap
	// may straddle a boundary undetected.
	Overlap() uint64
	// Scan reports all matches in data. A zero-length slice may simply
	// return nil.
	Scan(data []byte) []Match
}

// Region is a contiguous byte range [Start, End) within a named layer.
type Region struct {
	LayerName string
	Start     uint64
	End       uint64
}

// RegionSource supplies regions one at a time. Next returns false when the
// sequence is exhausted. Sources are pulled lazily; a source is free to
// compute the next region only when asked.
type RegionSource interface {
	Next() (Region, bool)
}

// RegionFunc adapts a closure to a RegionSource.
type RegionFunc func() (Region, bool)

// Next implements RegionSource.
func (f RegionFunc) Next() (Region, bool) { return f() }

// Regions adapts a fixed slice to a RegionSource, yielding in slice order.
func Regions(regions ...Region) RegionSource {
	i := 0
	return RegionFunc(func() (Region, bool) {
		if i >= len(regions) {
			return Region{}, false
		}
		r := regions[i]
		i++
		return r, true
	})
}

// Chunk is one read request produced for a region.
type Chunk struct {
	LayerName string
	Start     uint64
	Length    uint64
}

// Chunks cuts a region into read requests.
//
// While more than chunkSize+overlap bytes remain, a chunk of exactly
// chunkSize+overlap is emitted and the cursor advances by chunkSize. The
// remainder is emitted as one final chunk, however small; an empty region
// emits a single zero-length chunk, which matchers ignore.
func Chunks(r Region, chunkSize, overlap uint64) []Chunk {
	var chunks []Chunk
	start := r.Start
	for r.End-start > chunkSize+overlap {
		chunks = append(chunks, Chunk{LayerName: r.LayerName, Start: start, Length: chunkSize + overlap})
		start += chunkSize
	}
	return append(chunks, Chunk{LayerName: r.LayerName, Start: start, Length: r.End - start})
}

// Config holds scan policy knobs.
type Config struct {
	// SkipUnmapped makes the scanner log and move on when a chunk read
	// lands on a non-resident range, instead of aborting the scan.
	// Unmapped holes are routine in real images, but silently shrinking
	// coverage is surprising, so the default is to abort.
	SkipUnmapped bool

	// MaxRegionSize caps how many bytes of a single region are scanned.
	// Oversized regions are truncated with a warning, not rejected.
	// Zero means no cap.
	MaxRegionSize uint64
}

// Scanner drives a matcher over regions pulled from a source.
type Scanner struct {
	memory  *layer.Manager
	matcher Matcher
	cfg     Config
	session uuid.UUID
	log     zerolog.Logger
}

// New builds a scanner. The matcher's chunking invariants are checked
// here, once, rather than per region.
func New(memory *layer.Manager, matcher Matcher, cfg Config, log zerolog.Logger) (*Scanner, error) {
	if matcher.ChunkSize() == 0 {
		return nil, fmt.Errorf("matcher chunk size must be positive")
	}
	if matcher.Overlap() >= matcher.ChunkSize() {
		return nil, fmt.Errorf("matcher overlap %d must be smaller than chunk size %d",
			matcher.Overlap(), matcher.ChunkSize())
	}
	session := uuid.New()
	return &Scanner{
		memory:  memory,
		matcher: matcher,
		cfg:     cfg,
		session: session,
		log:     log.With().Str("component", "scanner").Str("session", session.String()).Logger(),
	}, nil
}

// Session identifies this scanner's run in logs and results.
func (s *Scanner) Session() uuid.UUID { return s.session }

// Run pulls regions from src until exhaustion, reads each chunk through
// the named layer, and reports hits to emit in order: left to right within
// a region, regions in source order. emit returning false stops the scan
// with no error.
//
// A hit lying entirely inside an overlap window is visible in two
// consecutive chunks; Run reports it once, from the first.
func (s *Scanner) Run(src RegionSource, emit func(Hit) bool) error {
	chunkSize := s.matcher.ChunkSize()
	overlap := s.matcher.Overlap()

	for {
		region, ok := src.Next()
		if !ok {
			return nil
		}
		l, err := s.memory.Get(region.LayerName)
		if err != nil {
			return err
		}
		if region.End < region.Start {
			return fmt.Errorf("region end %#x precedes start %#x", region.End, region.Start)
		}
		if s.cfg.MaxRegionSize > 0 && region.End-region.Start > s.cfg.MaxRegionSize {
			s.log.Warn().Str("layer", region.LayerName).
				Uint64("start", region.Start).
				Uint64("length", region.End-region.Start).
				Uint64("cap", s.cfg.MaxRegionSize).
				Msg("truncating oversized region")
			region.End = region.Start + s.cfg.MaxRegionSize
		}

		// Hits already reported from the previous chunk's tail, keyed
		// by absolute offset and label. Reset per region; regions are
		// independent.
		prevTail := make(map[Hit]struct{})

		for i, chunk := range Chunks(region, chunkSize, overlap) {
			data, err := l.Read(chunk.Start, chunk.Length)
			if err != nil {
				if s.cfg.SkipUnmapped && errors.Is(err, layer.ErrOutOfBounds) {
					s.log.Warn().Str("layer", chunk.LayerName).
						Uint64("offset", chunk.Start).Uint64("length", chunk.Length).
						Msg("skipping unmapped chunk")
					prevTail = make(map[Hit]struct{})
					continue
				}
				return err
			}

			nextTail := make(map[Hit]struct{})
			for _, m := range s.matcher.Scan(data) {
				hit := Hit{
					LayerName: chunk.LayerName,
					Offset:    chunk.Start + m.Offset,
					Label:     m.Label,
				}
				if m.Offset >= chunkSize {
					// Falls in the tail that the next chunk re-reads.
					nextTail[hit] = struct{}{}
				}
				if i > 0 && m.Offset < overlap {
					if _, dup := prevTail[hit]; dup {
						continue
					}
				}
				if !emit(hit) {
					return nil
				}
			}
			prevTail = nextTail
		}
	}
}

// All runs the scan to completion and collects every hit.
func (s *Scanner) All(src RegionSource) ([]Hit, error) {
	var hits []Hit
	err := s.Run(src, func(h Hit) bool {
		hits = append(hits, h)
		return true
	})
	return hits, err
}
