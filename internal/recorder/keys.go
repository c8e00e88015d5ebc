package recorder

import "encoding/binary"

var (
	plotsPrefix = []byte("plots/")
	metaSuffix  = []byte("/m")
	entrySeg    = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyMeta builds the metadata key of a plot's log.
func keyMeta(plot string) []byte {
	k := make([]byte, 0, len(plotsPrefix)+len(plot)+len(metaSuffix))
	k = append(k, plotsPrefix...)
	k = append(k, plot...)
	return append(k, metaSuffix...)
}

// keyEntry builds an entry key; the big-endian sequence keeps entries ordered.
func keyEntry(plot string, seq uint64) []byte {
	k := make([]byte, 0, len(plotsPrefix)+len(plot)+len(entrySeg)+8)
	k = append(k, plotsPrefix...)
	k = append(k, plot...)
	k = append(k, entrySeg...)
	return appendBE8(k, seq)
}

// seqFromKey extracts the sequence from an entry key.
func seqFromKey(k []byte) uint64 {
	if len(k) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k[len(k)-8:])
}

// entryBounds returns iterator bounds covering all entries of a plot.
func entryBounds(plot string) (lower, upper []byte) {
	return keyEntry(plot, 0), append(keyEntry(plot, ^uint64(0)), 0x00)
}
