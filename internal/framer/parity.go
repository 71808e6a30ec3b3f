package framer

import (
	"dcsingest/internal/global"
	"math/bits"
)

// Validates/strips the high parity bit of every byte.
// Bytes failing validation become the sentinel, the message is kept.
func applyParity(mode ParityMode, body []byte) (out []byte, replaced int) {
	if mode == ParityNone {
		out = body
		return
	}

	out = make([]byte, len(body))
	for i, b := range body {
		ones := bits.OnesCount8(b)
		switch {
		case mode == ParityStrip:
			out[i] = b & 0x7f
		case mode == ParityOdd && ones%2 == 1, mode == ParityEven && ones%2 == 0:
			out[i] = b & 0x7f
		default:
			out[i] = global.DefaultParitySentinel
			replaced++
		}
	}
	return
}
