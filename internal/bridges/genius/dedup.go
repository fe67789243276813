package genius

import "sync"

// DuplicateFilter drops link-layer repeats of the previously accepted packet.
//
// Genius detectors repeat every frame many times with only the rolling
// counter changing, so the filter compares a checksum over everything after
// the marker and counter. A single reference is kept for all packet types.
type DuplicateFilter struct {
	mu    sync.Mutex
	last  uint32
	valid bool
}

// Check reports whether p repeats the last accepted packet. A packet that is
// not a duplicate becomes the new reference. Packets of three bytes or less
// are never duplicates and do not change the reference.
func (f *DuplicateFilter) Check(p []byte) bool {
	if len(p) <= dedupSkip {
		return false
	}
	sum := Checksum(p)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.valid && sum == f.last {
		return true
	}
	f.last = sum
	f.valid = true
	return false
}

// Reset forgets the reference packet.
func (f *DuplicateFilter) Reset() {
	f.mu.Lock()
	f.valid = false
	f.mu.Unlock()
}

// Checksum XOR-folds the bytes after the marker and counter into 32 bits,
// byte i landing in lane i mod 4.
func Checksum(p []byte) uint32 {
	var sum uint32
	if len(p) <= dedupSkip {
		return 0
	}
	for i, b := range p[dedupSkip:] {
		sum ^= uint32(b) << (8 * (i % 4))
	}
	return sum
}
