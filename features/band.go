package features

import "math"

// Band identifies one of the fixed analysis frequency ranges.
type Band int

const (
	SubBass Band = iota
	Bass
	LowMid
	Mid
	HighMid
	Treble

	NumBands = 6
)

// BandRange is a half-open frequency range [Low, High) in Hz.
type BandRange struct {
	Low  float64
	High float64
}

var bandRanges = [NumBands]BandRange{
	SubBass: {20, 60},
	Bass:    {60, 250},
	LowMid:  {250, 500},
	Mid:     {500, 2000},
	HighMid: {2000, 5000},
	Treble:  {5000, 14000},
}

var bandNames = [NumBands]string{"subBass", "bass", "lowMid", "mid", "highMid", "treble"}

// Bands lists every band in ascending frequency order.
func Bands() [NumBands]Band {
	return [NumBands]Band{SubBass, Bass, LowMid, Mid, HighMid, Treble}
}

func (b Band) String() string {
	if b < 0 || int(b) >= NumBands {
		return "unknown"
	}
	return bandNames[b]
}

// Range returns the band's frequency range.
func (b Band) Range() BandRange {
	if b < 0 || int(b) >= NumBands {
		return BandRange{}
	}
	return bandRanges[b]
}

// BinRange returns the half-open bin index range [start, end) covered by band.
// Bin i is centred at i*sampleRate/fftSize and belongs to the band when that
// frequency falls inside the band's range, so adjacent bands never share bins.
func BinRange(b Band, sampleRate float64, fftSize int, binCount int) (start, end int) {
	if sampleRate <= 0 || fftSize <= 0 || binCount <= 0 {
		return 0, 0
	}
	binSize := sampleRate / float64(fftSize)
	r := b.Range()
	start = int(math.Ceil(r.Low / binSize))
	end = int(math.Ceil(r.High / binSize))
	if start < 0 {
		start = 0
	}
	if start > binCount {
		start = binCount
	}
	if end > binCount {
		end = binCount
	}
	if end < start {
		end = start
	}
	return start, end
}

// BandValues holds one value per band, indexed by Band.
type BandValues [NumBands]float64

// Get returns the value for band b.
func (v *BandValues) Get(b Band) float64 {
	return v[b]
}

// Map returns the values keyed by band name.
func (v BandValues) Map() map[string]float64 {
	out := make(map[string]float64, NumBands)
	for i, name := range bandNames {
		out[name] = v[i]
	}
	return out
}

// Energy3 is the coarse low/mid/high grouping of the six bands.
type Energy3 struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// groupEnergy recombines the six band energies into low/mid/high.
func groupEnergy(b *BandValues) Energy3 {
	return Energy3{
		Low:  (b[SubBass]*1.4 + b[Bass] + b[LowMid]*0.6) / 3,
		Mid:  (b[LowMid]*0.5 + b[Mid] + b[HighMid]*0.6) / 2.1,
		High: (b[HighMid]*0.9 + b[Treble]*1.2) / 2.1,
	}
}
