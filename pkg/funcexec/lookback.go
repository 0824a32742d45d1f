package funcexec

const (
	openMarker  = "<function"
	closeMarker = "</function>"
)

// lookback matches a fixed marker one byte at a time. Between pushes buf is
// always a strict prefix of marker.
type lookback struct {
	marker string
	buf    []byte
}

func newLookback(marker string) lookback {
	return lookback{marker: marker, buf: make([]byte, 0, len(marker))}
}

// push feeds c into the matcher. Bytes proven not to start the marker are
// appended to dst. matched is true when the marker just completed; the buffer
// is empty afterwards.
func (l *lookback) push(dst []byte, c byte) (out []byte, matched bool) {
	l.buf = append(l.buf, c)
	if len(l.buf) <= len(l.marker) && string(l.buf) == l.marker[:len(l.buf)] {
		if len(l.buf) == len(l.marker) {
			l.buf = l.buf[:0]
			return dst, true
		}
		return dst, false
	}

	keep := overlap(l.buf, l.marker)
	release := len(l.buf) - keep
	dst = append(dst, l.buf[:release]...)
	copy(l.buf, l.buf[release:])
	l.buf = l.buf[:keep]
	return dst, false
}

// drain appends whatever is still held back to dst and empties the buffer.
func (l *lookback) drain(dst []byte) []byte {
	dst = append(dst, l.buf...)
	l.buf = l.buf[:0]
	return dst
}

func (l *lookback) reset() {
	l.buf = l.buf[:0]
}

func (l *lookback) pending() int {
	return len(l.buf)
}

// overlap returns the length of the longest proper suffix of b that is a
// prefix of marker.
func overlap(b []byte, marker string) int {
	k := len(b) - 1
	if k > len(marker)-1 {
		k = len(marker) - 1
	}
	for ; k > 0; k-- {
		if string(b[len(b)-k:]) == marker[:k] {
			return k
		}
	}
	return 0
}
