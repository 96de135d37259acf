// Package sizeclass maps a requested byte size to a dense, process-wide
// size-class index and back. It is pure and stateless — the table is
// fixed at build time, the same shape as hive/alloc's sizeClassTable in
// the teacher module (piecewise segments computed once, looked up with
// simple arithmetic instead of that package's binary search, since our
// segments are uniform-step rather than table-driven and the fast path
// devolves to a division).
package sizeclass

import "github.com/nullptr-dev/gophercache/internal/tuning"

type segment struct {
	max       int64 // inclusive upper bound of this segment, in bytes
	step      int64
	baseIndex int64 // index of the first class in this segment
	prevMax   int64 // inclusive upper bound of the previous segment (0 for the first)
}

var segments = buildSegments()

// N is the total number of size classes.
var N = int(segments[len(segments)-1].baseIndex +
	(segments[len(segments)-1].max-segments[len(segments)-1].prevMax+segments[len(segments)-1].step-1)/segments[len(segments)-1].step)

func buildSegments() []segment {
	specs := []struct {
		max  int64
		step int64
	}{
		{tuning.SmallMax, tuning.SmallStep},
		{tuning.MediumMax, tuning.MediumStep},
		{tuning.LargeMax, tuning.LargeStep},
		{tuning.XLargeMax, tuning.XLargeStep},
	}
	segs := make([]segment, len(specs))
	var prevMax, cumIndex int64
	for i, s := range specs {
		segs[i] = segment{max: s.max, step: s.step, baseIndex: cumIndex, prevMax: prevMax}
		classes := (s.max - prevMax + s.step - 1) / s.step
		cumIndex += classes
		prevMax = s.max
	}
	return segs
}

// Index returns the dense class index for bytes, a value in [1, MaxBytes].
// It selects a segment by threshold, divides by the segment's step
// (rounding up), adds the cumulative class count of preceding segments,
// and subtracts one to make the result zero-based — exactly spec.md §4.C.
func Index(bytes int64) int {
	if bytes < 1 {
		bytes = 1
	}
	for _, seg := range segments {
		if bytes <= seg.max {
			classesIntoSeg := (bytes - seg.prevMax + seg.step - 1) / seg.step
			return int(seg.baseIndex + classesIntoSeg - 1)
		}
	}
	// bytes > tuning.XLargeMax: caller should have routed this through
	// the oversize path (spec.md §6); clamp to the last class rather than
	// panic, since Index is a pure function with no error return.
	last := segments[len(segments)-1]
	classes := (last.max - last.prevMax + last.step - 1) / last.step
	return int(last.baseIndex + classes - 1)
}

// Size returns the representative block size for a class index — the
// inverse of Index. Every byte size in a class's range rounds up to this
// size when allocated.
func Size(index int) int64 {
	idx := int64(index)
	for _, seg := range segments {
		classes := (seg.max - seg.prevMax + seg.step - 1) / seg.step
		if idx < seg.baseIndex+classes {
			offsetInSeg := idx - seg.baseIndex
			return seg.prevMax + (offsetInSeg+1)*seg.step
		}
	}
	last := segments[len(segments)-1]
	return last.max
}
