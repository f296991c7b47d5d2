package bwt

import "sync"

// minParallelChunk is the smallest slice worth handing to its own goroutine.
const minParallelChunk = 64 << 10

// Frequencies counts the occurrences of each byte value.
type Frequencies [256]uint64

// CountFrequencies counts byte values in data, splitting the work over up to
// parallelism goroutines and summing the partial tables.
func CountFrequencies(data []byte, parallelism int) Frequencies {
	parts := min(parallelism, len(data)/minParallelChunk)
	if parts <= 1 {
		var f Frequencies
		for _, b := range data {
			f[b]++
		}
		return f
	}

	chunk := (len(data) + parts - 1) / parts
	partial := make([]Frequencies, parts)

	var wg sync.WaitGroup
	for p := 0; p < parts; p++ {
		lo := p * chunk
		hi := min(lo+chunk, len(data))
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := &partial[p]
			for _, b := range data[lo:hi] {
				f[b]++
			}
		}()
	}
	wg.Wait()

	var total Frequencies
	for i := range partial {
		for b, c := range partial[i] {
			total[b] += c
		}
	}
	return total
}

// InUse returns the set of byte values with a non-zero count.
func (f *Frequencies) InUse() [256]bool {
	var used [256]bool
	for b, c := range f {
		used[b] = c > 0
	}
	return used
}

// Dominant returns the most frequent byte value and its count.
func (f *Frequencies) Dominant() (byte, uint64) {
	var best byte
	var count uint64
	for b, c := range f {
		if c > count {
			best, count = byte(b), c
		}
	}
	return best, count
}
