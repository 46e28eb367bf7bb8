package rtls

// UpdateKind tells whether a measurement created a new pair history or
// extended an existing one.
type UpdateKind int

const (
	Created UpdateKind = iota // first sample for the pair, history bootstrap-filled
	Updated                   // sample pushed onto an existing history
)

func (k UpdateKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Neighbor is a ranging partner of a device together with the shared history.
type Neighbor struct {
	ID      uint32
	History *MeasurementHistory
}

// MeasurementGraph owns the ranging histories of a zone, keyed by canonical
// pair. Histories are never removed.
type MeasurementGraph struct {
	histories map[Pair]*MeasurementHistory
	order     []Pair // creation order, for deterministic neighbor listing
}

// NewMeasurementGraph creates an empty graph.
func NewMeasurementGraph() *MeasurementGraph {
	return &MeasurementGraph{
		histories: make(map[Pair]*MeasurementHistory),
	}
}

// Record stores a ranging sample between a and b. The first sample for a
// pair fills the whole history.
func (g *MeasurementGraph) Record(a, b uint32, distance float32, timestamp uint32) UpdateKind {
	sample := MeasurementSample{
		Pair:      CanonicalPair(a, b),
		Distance:  distance,
		Timestamp: timestamp,
	}
	if h, ok := g.histories[sample.Pair]; ok {
		h.push(sample)
		return Updated
	}
	g.histories[sample.Pair] = newMeasurementHistory(sample)
	g.order = append(g.order, sample.Pair)
	return Created
}

// NeighborsOf lists every device that has ranged with id, in the order the
// pairs were first observed.
func (g *MeasurementGraph) NeighborsOf(id uint32) []Neighbor {
	var out []Neighbor
	for _, p := range g.order {
		if !p.Contains(id) {
			continue
		}
		out = append(out, Neighbor{ID: p.Other(id), History: g.histories[p]})
	}
	return out
}

// Latest returns the most recent sample of a pair.
func (g *MeasurementGraph) Latest(p Pair) (MeasurementSample, bool) {
	h, ok := g.histories[CanonicalPair(p.Lo, p.Hi)]
	if !ok {
		return MeasurementSample{}, false
	}
	return h.Latest(), true
}

// History returns the history of a pair.
func (g *MeasurementGraph) History(p Pair) (*MeasurementHistory, bool) {
	h, ok := g.histories[CanonicalPair(p.Lo, p.Hi)]
	return h, ok
}

// Len returns the number of observed pairs.
func (g *MeasurementGraph) Len() int {
	return len(g.order)
}
