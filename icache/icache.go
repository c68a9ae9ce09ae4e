// Package icache implements the EV6 instruction cache: a two-way
// set-associative, virtually-indexed/physically-tagged array of 64-byte
// lines, the per-PC-index set predictor, and the per-line successor
// (line) predictor the fetch engine uses to avoid bubbles on correctly
// predicted fetches.
package icache

import "github.com/ev6sim/ev6core/cpu"

const (
	// LineBytes is the physical cache line size.
	LineBytes = 64
	// InsPerLine is the number of 4-byte instructions a physical line
	// holds.
	InsPerLine = LineBytes / 4
	// QuadCount is the number of four-instruction ins_lines a physical
	// line is pre-decoded into; fetch delivers one of them at a time.
	QuadCount = 4
	// InsPerQuad is the instruction count of a single delivered ins_line.
	InsPerQuad = InsPerLine / QuadCount

	// Ways is the cache associativity.
	Ways = 2
	// indexBits is the width of the virtual index, PC bits [15:6].
	indexBits = 10
	// NumIndex is the number of index slots per way.
	NumIndex = 1 << indexBits
)

// Quad is one pre-decoded four-instruction ins_line: the unit Fetch
// delivers on a hit.
type Quad struct {
	Instructions [InsPerQuad]uint32
	Kinds        [InsPerQuad]Kind
}

// physLine is one resident 64-byte cache line.
type physLine struct {
	valid    bool
	tag      uint64 // physical line number: pa >> 6
	quads    [QuadCount]Quad
	isPAL    bool
	asn      uint64
	linePred uint64 // predicted successor physical line number
}

// Result is what Fetch returns on a hit: the requested ins_line plus the
// line predictor's hint for the line that will be wanted next, so the
// fetch engine can speculatively fetch it in the same cycle.
type Result struct {
	Quad         Quad
	NextLineHint uint64
}

// Icache is the two-way set-associative instruction cache.
type Icache struct {
	ways [Ways][NumIndex]physLine

	// setPredictor holds, per PC index, the way most recently hit, the
	// fetch engine's 1-bit prediction of which way to probe first.
	setPredictor [NumIndex]int

	// fillClock/fillStamp implement the fill replacement policy:
	// first-invalid-wins, else least-recently-filled.
	fillClock uint64
	fillStamp [Ways][NumIndex]uint64

	// enabledWays is the icache_enable_sets configuration bitmask: bit i
	// set means way i participates in fetch/fill.
	enabledWays uint8
}

// New creates an empty Icache with the given way-enable bitmask (bits
// 0 and 1 corresponding to the two ways, the ic_ctl.ic_en IPR field).
func New(enabledWays uint8) *Icache {
	ic := &Icache{enabledWays: enabledWays & 0x3}
	if ic.enabledWays == 0 {
		ic.enabledWays = 0x3
	}
	return ic
}

func index(byteAddr uint64) int {
	return int((byteAddr >> 6) & (NumIndex - 1))
}

func quadIndex(byteAddr uint64) int {
	return int((byteAddr >> 4) & (QuadCount - 1))
}

func (ic *Icache) wayEnabled(way int) bool {
	return ic.enabledWays&(1<<uint(way)) != 0
}

// Fetch consults both ways for the physical line tagged by pa, at the
// virtual index derived from pc. On hit it updates the set predictor
// with the winning way and returns the requested ins_line plus the
// line-predictor hint. On miss it returns false and leaves no state
// changed.
func (ic *Icache) Fetch(pc cpu.PC, pa uint64) (Result, bool) {
	byteAddr := pc.ByteAddress()
	idx := index(byteAddr)
	tag := pa >> 6

	for way := 0; way < Ways; way++ {
		if !ic.wayEnabled(way) {
			continue
		}
		line := &ic.ways[way][idx]
		if line.valid && line.tag == tag {
			ic.setPredictor[idx] = way
			return Result{
				Quad:         line.quads[quadIndex(byteAddr)],
				NextLineHint: line.linePred,
			}, true
		}
	}
	return Result{}, false
}

// Valid probes for the line tagged by pa at pc's index without updating
// any predictor state.
func (ic *Icache) Valid(pc cpu.PC, pa uint64) bool {
	idx := index(pc.ByteAddress())
	tag := pa >> 6
	for way := 0; way < Ways; way++ {
		if !ic.wayEnabled(way) {
			continue
		}
		line := &ic.ways[way][idx]
		if line.valid && line.tag == tag {
			return true
		}
	}
	return false
}

// Add fills the physical line containing pc/pa with a freshly-fetched
// 16-instruction block, pre-decoding it into four
// ins_lines and stamping the physical tag, PALcode mode, and ASN. The
// way to fill is chosen first-invalid-wins, else least-recently-filled.
// The line predictor is initialized to the sequentially-next physical
// line.
func (ic *Icache) Add(pc cpu.PC, pa uint64, block [InsPerLine]uint32, isPAL bool, asn uint64) {
	idx := index(pc.ByteAddress())
	tag := pa >> 6

	way := ic.chooseFillWay(idx)

	var line physLine
	line.valid = true
	line.tag = tag
	line.isPAL = isPAL
	line.asn = asn
	line.linePred = tag + 1

	for q := 0; q < QuadCount; q++ {
		for i := 0; i < InsPerQuad; i++ {
			ins := block[q*InsPerQuad+i]
			line.quads[q].Instructions[i] = ins
			line.quads[q].Kinds[i] = Classify(ins)
		}
	}

	ic.ways[way][idx] = line
	ic.fillClock++
	ic.fillStamp[way][idx] = ic.fillClock
}

// chooseFillWay returns the first invalid enabled way at idx, or the
// least-recently-filled enabled way if all are valid.
func (ic *Icache) chooseFillWay(idx int) int {
	for way := 0; way < Ways; way++ {
		if !ic.wayEnabled(way) {
			continue
		}
		if !ic.ways[way][idx].valid {
			return way
		}
	}

	victim := -1
	for way := 0; way < Ways; way++ {
		if !ic.wayEnabled(way) {
			continue
		}
		if victim == -1 || ic.fillStamp[way][idx] < ic.fillStamp[victim][idx] {
			victim = way
		}
	}
	if victim == -1 {
		victim = 0
	}
	return victim
}

// Flush clears all entries, or only those with the PAL bit set when
// palOnly is true.
func (ic *Icache) Flush(palOnly bool) {
	for way := 0; way < Ways; way++ {
		for idx := 0; idx < NumIndex; idx++ {
			line := &ic.ways[way][idx]
			if !line.valid {
				continue
			}
			if palOnly && !line.isPAL {
				continue
			}
			*line = physLine{}
		}
	}
}

// Occupancy reports, per way, how many of the NumIndex slots currently
// hold a valid line. It is a diagnostic accessor only.
func (ic *Icache) Occupancy() [Ways]int {
	var occ [Ways]int
	for way := 0; way < Ways; way++ {
		for idx := 0; idx < NumIndex; idx++ {
			if ic.ways[way][idx].valid {
				occ[way]++
			}
		}
	}
	return occ
}

// UpdateLinePredictor corrects the successor hint for the physical line
// tagged oldTag after the fetch engine observes the actual next line
// taken, following a misprediction. It is a no-op if the line has since
// been evicted.
func (ic *Icache) UpdateLinePredictor(oldTag, actualNextTag uint64) {
	idx := int(oldTag & (NumIndex - 1))
	for way := 0; way < Ways; way++ {
		line := &ic.ways[way][idx]
		if line.valid && line.tag == oldTag {
			line.linePred = actualNextTag
		}
	}
}
