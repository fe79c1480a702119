package scanner

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
)

// Default chunking geometry. The overlap bounds the longest match the
// boundary guarantee covers.
const (
	DefaultChunkSize uint64 = 1 << 20
	DefaultOverlap   uint64 = 1 << 12
)

// Pattern is one labelled byte sequence for a BytesMatcher.
type Pattern struct {
	Label string
	Bytes []byte
}

// BytesMatcher finds every occurrence of a set of literal byte patterns.
type BytesMatcher struct {
	patterns  []Pattern
	chunkSize uint64
	overlap   uint64
}

// NewBytesMatcher builds a matcher over patterns. The overlap is grown to
// the longest pattern, so no pattern can be lost across a chunk boundary.
func NewBytesMatcher(patterns ...Pattern) (*BytesMatcher, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no patterns supplied")
	}
	overlap := DefaultOverlap
	for _, p := range patterns {
		if len(p.Bytes) == 0 {
			return nil, fmt.Errorf("pattern %q is empty", p.Label)
		}
		if uint64(len(p.Bytes)) > overlap {
			overlap = uint64(len(p.Bytes))
		}
	}
	chunkSize := DefaultChunkSize
	if overlap >= chunkSize {
		chunkSize = overlap * 2
	}
	return &BytesMatcher{patterns: patterns, chunkSize: chunkSize, overlap: overlap}, nil
}

// SetChunking overrides the chunk geometry. Shrinking the overlap below
// the longest pattern reintroduces boundary misses; the scanner rejects
// overlap >= chunkSize.
func (m *BytesMatcher) SetChunking(chunkSize, overlap uint64) {
	m.chunkSize = chunkSize
	m.overlap = overlap
}

// ChunkSize implements Matcher.
func (m *BytesMatcher) ChunkSize() uint64 { return m.chunkSize }

// Overlap implements Matcher.
func (m *BytesMatcher) Overlap() uint64 { return m.overlap }

// Scan implements Matcher. Matches come back in offset order regardless of
// which pattern produced them.
func (m *BytesMatcher) Scan(data []byte) []Match {
	var matches []Match
	for _, p := range m.patterns {
		for off := 0; ; {
			i := bytes.Index(data[off:], p.Bytes)
			if i < 0 {
				break
			}
			matches = append(matches, Match{Offset: uint64(off + i), Label: p.Label})
			off += i + 1
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Offset < matches[j].Offset })
	return matches
}

// RegexpMatcher reports every match of a compiled regular expression. The
// boundary guarantee only covers matches no longer than the overlap;
// unbounded expressions can still straddle chunks.
type RegexpMatcher struct {
	label     string
	re        *regexp.Regexp
	chunkSize uint64
	overlap   uint64
}

// NewRegexpMatcher builds a matcher reporting re's matches under label.
func NewRegexpMatcher(label string, re *regexp.Regexp) *RegexpMatcher {
	return &RegexpMatcher{
		label:     label,
		re:        re,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
}

// SetChunking overrides the chunk geometry.
func (m *RegexpMatcher) SetChunking(chunkSize, overlap uint64) {
	m.chunkSize = chunkSize
	m.overlap = overlap
}

// ChunkSize implements Matcher.
func (m *RegexpMatcher) ChunkSize() uint64 { return m.chunkSize }

// Overlap implements Matcher.
func (m *RegexpMatcher) Overlap() uint64 { return m.overlap }

// Scan implements Matcher.
func (m *RegexpMatcher) Scan(data []byte) []Match {
	var matches []Match
	for _, loc := range m.re.FindAllIndex(data, -1) {
		matches = append(matches, Match{Offset: uint64(loc[0]), Label: m.label})
	}
	return matches
}
