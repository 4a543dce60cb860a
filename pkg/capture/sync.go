// Copyright 2026 The avicap Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package capture

const (
	lineBufSize     = 720
	vsyncMinLength  = 26
	lineFlagBurst   = 0x80
	lineFlagNTSCDot = 0x01
)

// Sync timing constants of a video standard, in horizontal time
// units. A PAL dot is 5 units and an NTSC dot is 4 units.
type syncTiming struct {
	burstValue      byte
	period          int
	lineStart       int
	hsyncMin        int
	hsyncMax        int
	lineLengthMin   int
	lineLengthMax   int
	vsyncThreshold1 int
	vsyncThreshold2 int
	vsyncReload     int
	lineReload      int
}

var (
	palTiming = syncTiming{
		burstValue:      0x08,
		period:          570,
		lineStart:       80,
		hsyncMin:        494,
		hsyncMax:        646,
		lineLengthMin:   513,
		lineLengthMax:   627,
		vsyncThreshold1: 335,
		vsyncThreshold2: 261,
		vsyncReload:     -19,
		lineReload:      0,
	}
	ntscTiming = syncTiming{
		burstValue:      0x09,
		period:          456,
		lineStart:       64,
		hsyncMin:        380,
		hsyncMax:        532,
		lineLengthMin:   399,
		lineLengthMax:   513,
		vsyncThreshold1: 292,
		vsyncThreshold2: 242,
		vsyncReload:     0,
		lineReload:      12,
	}
)

// lineBuffer visible samples of the current line.
type lineBuffer struct {
	buf [lineBufSize]byte
	n   int

	// Visible length in time units.
	length int

	// lineFlagBurst if a burst was seen,
	// lineFlagNTSCDot if the line needs resampling.
	flags byte
}

func (l *lineBuffer) data() []byte {
	return l.buf[:l.n]
}

// append copies a sample of size bytes, short samples are
// padded with zeros. Samples that do not fit are dropped.
func (l *lineBuffer) append(sample []byte, size int) {
	if l.n+size > lineBufSize {
		return
	}
	dst := l.buf[l.n : l.n+size]
	n := copy(dst, sample)
	for i := n; i < size; i++ {
		dst[i] = 0
	}
	l.n += size
}

func (l *lineBuffer) reset() {
	l.n = 0
	l.length = 0
	l.flags = 0
}

// lineSink receives decoded lines and frame boundaries.
type lineSink interface {
	decodeLine(l *lineBuffer, row int, ntsc bool)
	clearLine(row int)
	frameDone()
}

// clock native time in microseconds, 32.32 fixed point.
type clock struct {
	curTime   int64
	timeslice int64
}

// syncDecoder software PLL that recovers lines and frames
// from the sync bits of the sample stream.
type syncDecoder struct {
	timing syncTiming
	ntsc   bool
	height int
	sink   lineSink
	clock  *clock

	syncLengthCnt    int
	hsyncCnt         int
	hsyncPeriod      int
	hsyncPeriodQ     int // hsyncPeriod in quarter units.
	lineLengthCnt    int
	lineLength       int
	lineLengthFilter float32
	curLine          int
	vsyncCnt         int
	oddFrame         bool
	line             lineBuffer

	lines  int
	frames int
}

func newSyncDecoder(height int, sink lineSink, c *clock) *syncDecoder {
	d := &syncDecoder{
		height: height,
		sink:   sink,
		clock:  c,
	}
	d.setTiming(palTiming)
	return d
}

func (d *syncDecoder) setTiming(t syncTiming) {
	d.timing = t
	d.line.reset()
	d.syncLengthCnt = 0
	d.hsyncCnt = 0
	d.setHsyncPeriodQ(t.period << 2)
	d.lineLengthCnt = 0
	d.lineLength = t.period
	d.lineLengthFilter = float32(t.period)
}

// setNTSC switches the timing constants, a no-op if unchanged.
func (d *syncDecoder) setNTSC(ntsc bool) {
	if ntsc == d.ntsc {
		return
	}
	d.ntsc = ntsc
	if ntsc {
		d.setTiming(ntscTiming)
	} else {
		d.setTiming(palTiming)
	}
}

func (d *syncDecoder) setHsyncPeriodQ(q int) {
	d.hsyncPeriodQ = q
	d.hsyncPeriod = (q + 2) >> 2
}

// filterHsyncPeriod moves the period estimate a quarter of the way
// toward v. The estimate keeps two fraction bits so that it
// converges to v instead of stopping one unit short.
func (d *syncDecoder) filterHsyncPeriod(v int) {
	d.setHsyncPeriodQ(d.hsyncPeriodQ - d.hsyncPeriodQ>>2 + v)
}

// reduceHsync drops whole periods from an hsync count
// that exceeds the maximum, pulling the period estimate up.
func (d *syncDecoder) reduceHsync() {
	for d.hsyncCnt >= d.timing.hsyncMax {
		d.hsyncCnt -= d.hsyncPeriod
		d.filterHsyncPeriod(d.timing.hsyncMax)
	}
}

// feed processes one sample. The first byte holds the flags, any
// input including an empty slice is accepted.
func (d *syncDecoder) feed(sample []byte) {
	var c byte
	if len(sample) > 0 {
		c = sample[0]
	}

	if c&0x80 != 0 {
		if d.syncLengthCnt == 0 {
			d.reduceHsync()
			if d.hsyncCnt >= d.timing.hsyncMin {
				d.filterHsyncPeriod(d.hsyncCnt)
				d.hsyncCnt = 0
			}
		}
		d.syncLengthCnt++
		if d.syncLengthCnt >= vsyncMinLength && d.vsyncCnt >= d.timing.vsyncThreshold2 {
			d.vsyncCnt = d.timing.vsyncReload
			d.oddFrame = d.lineLengthCnt+6 > d.lineLength>>1
		}
	} else {
		d.syncLengthCnt = 0
	}

	d.line.flags |= 0x80 - ((c ^ d.timing.burstValue) & 0x09)
	l := int(c&1) ^ 5

	switch {
	case d.lineLengthCnt < d.timing.lineStart:
		d.line.length = d.lineLengthCnt + l
	case d.lineLengthCnt < d.lineLength:
		size := 2
		if c&0x02 != 0 {
			size = 5
		}
		d.line.append(sample, size)
	default:
		d.line.length = d.lineLengthCnt - d.line.length
		d.lineDone()
	}
	d.lineLengthCnt += l
	d.hsyncCnt += l
	d.clock.curTime += d.clock.timeslice
}

func (d *syncDecoder) lineDone() {
	d.lines++
	d.lineLengthCnt -= d.lineLength
	d.reduceHsync()

	d.lineLengthFilter = d.lineLengthFilter*0.9 + float32(d.hsyncPeriod)*0.1
	d.lineLength = int(d.lineLengthFilter + 0.5)
	if d.lineLengthCnt != d.hsyncCnt {
		phaseError := d.lineLengthCnt - d.hsyncCnt
		if phaseError >= d.hsyncPeriod>>1 {
			phaseError -= d.hsyncPeriod
		}
		if phaseError <= -(d.hsyncPeriod >> 1) {
			phaseError += d.hsyncPeriod
		}
		correction := phaseError
		if correction < 0 {
			correction = -correction
		}
		correction = (correction + 6) >> 2
		if correction > 10 {
			correction = 10
		}
		if phaseError >= 0 {
			d.lineLength += correction
		} else {
			d.lineLength -= correction
		}
		if d.lineLength > d.timing.lineLengthMax {
			d.lineLength = d.timing.lineLengthMax
		} else if d.lineLength < d.timing.lineLengthMin {
			d.lineLength = d.timing.lineLengthMin
		}
	}

	if d.curLine >= 2 && d.curLine < d.height*2+2 {
		d.sink.decodeLine(&d.line, (d.curLine-2)>>1, d.ntsc)
	}
	d.line.reset()
	d.curLine += 2

	if d.vsyncCnt >= d.timing.vsyncThreshold1 {
		d.vsyncCnt = d.timing.vsyncReload
		d.oddFrame = false
	}
	if d.vsyncCnt == 0 {
		start := (d.curLine - 2) >> 1
		if start < 0 {
			start = 0
		}
		for row := start; row < d.height; row++ {
			d.sink.clearLine(row)
		}
		d.frames++
		d.sink.frameDone()
		d.curLine = d.timing.lineReload
		if d.oddFrame {
			d.curLine--
		}
		for i := 0; i < d.curLine-2; i += 2 {
			d.sink.clearLine(i >> 1)
		}
	}
	d.vsyncCnt++
}
