package report

import (
	"math"

	"github.com/hyperjump/pdbstat/internal/analysis"
	"github.com/hyperjump/pdbstat/pkg/utils"
)

// DefaultHistogramBins is the number of bins used for bond-length
// distributions in JSON and workbook output.
const DefaultHistogramBins = 20

// BondStats summarises a list of bond lengths.
type BondStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	// Min and Max are the first shortest and first longest records.
	Min analysis.BondLength `json:"min"`
	Max analysis.BondLength `json:"max"`
}

// BondStatistics derives average, minimum and maximum from bonds. ok is
// false when bonds is empty.
func BondStatistics(bonds []analysis.BondLength) (stats BondStats, ok bool) {
	if len(bonds) == 0 {
		return BondStats{}, false
	}
	d := distances(bonds)
	return BondStats{
		Count:   len(bonds),
		Average: utils.Mean(d),
		Min:     bonds[utils.ArgMin(d)],
		Max:     bonds[utils.ArgMax(d)],
	}, true
}

// Bin is one histogram bucket covering [Low, High). The last bucket also
// includes High.
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Histogram buckets bond distances into n equal-width bins spanning the
// observed range. Non-finite distances are ignored. It returns nil when no
// finite distance remains or n < 1. When every distance is the same a
// single bin holds them all.
func Histogram(bonds []analysis.BondLength, n int) []Bin {
	if n < 1 {
		return nil
	}
	d := finite(distances(bonds))
	if len(d) == 0 {
		return nil
	}
	lo, hi := d[utils.ArgMin(d)], d[utils.ArgMax(d)]
	if hi == lo {
		return []Bin{{Low: lo, High: hi, Count: len(d)}}
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Low = lo + float64(i)*width
		bins[i].High = lo + float64(i+1)*width
	}
	bins[n-1].High = hi
	for _, v := range d {
		i := int((v - lo) / width)
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}

func distances(bonds []analysis.BondLength) []float64 {
	d := make([]float64, len(bonds))
	for i, b := range bonds {
		d[i] = b.Distance
	}
	return d
}

func finite(d []float64) []float64 {
	out := d[:0]
	for _, v := range d {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
