// Package fingerprint reduces product images to 64-bit perceptual hashes.
//
// The hash is the classic DCT pHash: the image is converted to grayscale,
// resized to 32x32, transformed with a 2-D DCT-II, and the top-left 8x8
// block of low frequencies is thresholded against its median. Bits are packed
// row-major, most significant bit first, and the unsigned result is stored as
// a signed int64 (two's complement) so SQLite can hold it as an INTEGER.
//
// Engine runs the fingerprint pass over listings that have an image URL but
// no fingerprint yet. A failed download or decode never aborts the pass.
package fingerprint
