package rtls

import "fmt"

// MeasureDepth is the number of ranging samples kept per device pair.
const MeasureDepth = 5

// Pair is an unordered device pair in canonical form (Lo < Hi).
type Pair struct {
	Lo uint32 `json:"lo"`
	Hi uint32 `json:"hi"`
}

// CanonicalPair orders a and b so that (a,b) and (b,a) map to the same key.
func CanonicalPair(a, b uint32) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}
}

// Other returns the endpoint of p that is not id.
func (p Pair) Other(id uint32) uint32 {
	if p.Lo == id {
		return p.Hi
	}
	return p.Lo
}

// Contains reports whether id is one of the endpoints.
func (p Pair) Contains(id uint32) bool {
	return p.Lo == id || p.Hi == id
}

func (p Pair) String() string {
	return fmt.Sprintf("%d-%d", p.Lo, p.Hi)
}

// MeasurementSample is one ranging reading between the devices of Pair.
type MeasurementSample struct {
	Pair      Pair    `json:"pair"`
	Distance  float32 `json:"distance"`
	Timestamp uint32  `json:"timestamp"`
}

// MeasurementHistory holds the MeasureDepth most recent samples of one pair,
// newest first. A history is full from the moment it is created.
type MeasurementHistory struct {
	pair    Pair
	samples *Ring[MeasurementSample]
}

func newMeasurementHistory(first MeasurementSample) *MeasurementHistory {
	h := &MeasurementHistory{
		pair:    first.Pair,
		samples: NewRing[MeasurementSample](MeasureDepth),
	}
	// Bootstrap fill: consumers always see a full window.
	h.samples.Fill(first)
	return h
}

func (h *MeasurementHistory) push(s MeasurementSample) {
	h.samples.Push(s)
	if h.samples.Len() != MeasureDepth {
		panic(fmt.Sprintf("rtls: history %s holds %d samples, want %d", h.pair, h.samples.Len(), MeasureDepth))
	}
}

// Pair returns the canonical pair this history belongs to.
func (h *MeasurementHistory) Pair() Pair {
	return h.pair
}

// Latest returns the most recent sample.
func (h *MeasurementHistory) Latest() MeasurementSample {
	s, _ := h.samples.Front()
	return s
}

// Len returns the number of samples, always MeasureDepth.
func (h *MeasurementHistory) Len() int {
	return h.samples.Len()
}

// Samples copies the samples newest first.
func (h *MeasurementHistory) Samples() []MeasurementSample {
	return h.samples.Slice()
}
