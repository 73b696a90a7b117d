// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Self-describing payloads: a publication with sequence number seq fills the
// slot with seq as repeated little-endian 64-bit words and pads the tail with
// the low byte of seq. Any slot mixing two publications fails verification.

package stress

import "encoding/binary"

const wordSize = 8

// encode fills dst with the payload for seq.
func encode(seq uint64, dst []byte) {
	n := len(dst) - len(dst)%wordSize
	for i := 0; i < n; i += wordSize {
		binary.LittleEndian.PutUint64(dst[i:], seq)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = byte(seq)
	}
}

// verify reports the sequence number carried by p and whether p is a whole
// publication. An all-zero slot is a whole publication with sequence 0.
func verify(p []byte) (uint64, bool) {
	if len(p) == 0 {
		return 0, true
	}
	n := len(p) - len(p)%wordSize
	var seq uint64
	if n > 0 {
		seq = binary.LittleEndian.Uint64(p)
	} else {
		seq = uint64(p[0])
	}
	for i := wordSize; i < n; i += wordSize {
		if binary.LittleEndian.Uint64(p[i:]) != seq {
			return seq, false
		}
	}
	for i := n; i < len(p); i++ {
		if p[i] != byte(seq) {
			return seq, false
		}
	}
	return seq, true
}
