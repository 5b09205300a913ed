// Package lzf decompresses LZF-compressed blocks, the byte format PCD
// "binary_compressed" data uses (spec.md §4.1). LZF has no pure-Go
// implementation in this module's dependency pack — klauspost/compress
// covers flate/zstd/s2/lz4, none of which is LZF — so this is a small
// hand-written decompressor against the well-known liblzf byte layout.
package lzf

import "fmt"

// Decompress expands an LZF block into exactly uncompressedSize bytes.
// The stream is a sequence of control bytes: a control byte below 32 is a
// literal run of ctrl+1 raw bytes; 32 and above is a back-reference of
// (ctrl>>5)+2 bytes (or +factor from a following length-extension byte
// when ctrl>>5 == 7) copied from `op - ((ctrl&0x1f)<<8) - nextByte - 1`.
func Decompress(src []byte, uncompressedSize int) ([]byte, error) {
	out := make([]byte, 0, uncompressedSize)
	ip := 0
	for ip < len(src) {
		ctrl := int(src[ip])
		ip++
		if ctrl < 32 {
			n := ctrl + 1
			if ip+n > len(src) {
				return nil, fmt.Errorf("lzf: literal run overruns input at byte %d", ip)
			}
			out = append(out, src[ip:ip+n]...)
			ip += n
			continue
		}

		length := ctrl >> 5
		if length == 7 {
			if ip >= len(src) {
				return nil, fmt.Errorf("lzf: truncated length extension")
			}
			length += int(src[ip])
			ip++
		}
		if ip >= len(src) {
			return nil, fmt.Errorf("lzf: truncated back-reference")
		}
		refOffset := ((ctrl & 0x1f) << 8) + int(src[ip]) + 1
		ip++
		ref := len(out) - refOffset
		if ref < 0 {
			return nil, fmt.Errorf("lzf: back-reference before start of output")
		}
		length += 2
		for i := 0; i < length; i++ {
			out = append(out, out[ref+i])
		}
	}
	if len(out) != uncompressedSize {
		return nil, fmt.Errorf("lzf: decompressed to %d bytes, want %d", len(out), uncompressedSize)
	}
	return out, nil
}
