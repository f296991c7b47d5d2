package bwt

import "errors"

const (
	nRadix = 2
	nQSort = 12
	nShell = 18

	// overshoot is the number of bytes mirrored past the end of the block so the
	// comparator can run ahead without wrapping on every byte.
	overshoot = nRadix + nQSort + nShell + 2

	qsortSmallThresh = 20
	qsortDepthThresh = nRadix + nQSort
)

// errBudgetExhausted reports that the primary sort spent its comparison budget.
var errBudgetExhausted = errors.New("bwt: sort budget exhausted")

// Shell sort gaps, h(k+1) = 3h(k) + 1.
var incs = [...]int32{1, 4, 13, 40, 121, 364, 1093, 3280, 9841, 29524, 88573, 265720, 797161, 2391484}

// mainSorter holds the working state of one primary sort.
type mainSorter struct {
	n      int32
	block  []byte   // block followed by overshoot mirrored bytes
	quad   []uint16 // rank cache, same layout as block
	ptr    []int32
	ftab   []int32
	done   *bitset // small buckets whose order is final
	stack  []span
	budget int
}

func newMainSorter(block []byte, budget int) *mainSorter {
	n := int32(len(block))
	ext := make([]byte, int(n)+overshoot)
	copy(ext, block)
	for i := int32(0); i < overshoot; i++ {
		ext[n+i] = block[i%n]
	}
	return &mainSorter{
		n:      n,
		block:  ext,
		quad:   make([]uint16, int(n)+overshoot),
		ptr:    make([]int32, n),
		ftab:   make([]int32, 65537),
		done:   newBitset(65536),
		stack:  make([]span, 0, 64),
		budget: budget,
	}
}

// sort orders ptr by rotation. It returns errBudgetExhausted when the comparison
// budget runs out; ptr is meaningless in that case.
func (s *mainSorter) sort() error {
	n := s.n
	block, ptr, ftab := s.block, s.ptr, s.ftab

	// 2-byte frequency table, keyed by block[i]<<8 | block[i+1] with wraparound
	j := int32(block[0]) << 8
	for i := n - 1; i >= 0; i-- {
		j = j>>8 | int32(block[i])<<8
		ftab[j]++
	}
	for i := 1; i <= 65536; i++ {
		ftab[i] += ftab[i-1]
	}

	key := int32(block[0]) << 8
	for i := n - 1; i >= 0; i-- {
		key = key>>8 | int32(block[i])<<8
		j := ftab[key] - 1
		ftab[key] = j
		ptr[j] = i
	}
	// ftab now holds the first slot of every small bucket

	bigFreq := func(b int32) int32 {
		return ftab[(b+1)<<8] - ftab[b<<8]
	}

	// Process big buckets from smallest to largest
	var runningOrder [256]int32
	for i := range runningOrder {
		runningOrder[i] = int32(i)
	}
	h := int32(1)
	for h <= 256 {
		h = 3*h + 1
	}
	for h != 1 {
		h /= 3
		for i := h; i <= 255; i++ {
			vv := runningOrder[i]
			j := i
			for bigFreq(runningOrder[j-h]) > bigFreq(vv) {
				runningOrder[j] = runningOrder[j-h]
				j -= h
				if j <= h-1 {
					break
				}
			}
			runningOrder[j] = vv
		}
	}

	var bigDone [256]bool
	var copyStart, copyEnd [256]int32

	for i := 0; i <= 255; i++ {
		ss := runningOrder[i]

		// Sort the small buckets [ss, j] that pointer scanning has not already settled
		for j := int32(0); j <= 255; j++ {
			if j == ss {
				continue
			}
			sb := ss<<8 + j
			if !s.done.test(sb) {
				lo := ftab[sb]
				hi := ftab[sb+1] - 1
				if hi > lo {
					if err := s.qSort3(lo, hi, nRadix); err != nil {
						return err
					}
				}
			}
			s.done.set(sb)
		}

		if bigDone[ss] {
			raise(errCodeBigBucketTwice, "big bucket %#02x processed twice", ss)
		}

		// The sorted big bucket [ss] induces the order of every small bucket [t, ss],
		// including [ss, ss] itself
		for j := int32(0); j <= 255; j++ {
			copyStart[j] = ftab[j<<8+ss]
			copyEnd[j] = ftab[j<<8+ss+1] - 1
		}
		for j := ftab[ss<<8]; j < copyStart[ss]; j++ {
			k := ptr[j] - 1
			if k < 0 {
				k += n
			}
			c1 := block[k]
			if !bigDone[c1] {
				ptr[copyStart[c1]] = k
				copyStart[c1]++
			}
		}
		for j := ftab[(ss+1)<<8] - 1; j > copyEnd[ss]; j-- {
			k := ptr[j] - 1
			if k < 0 {
				k += n
			}
			c1 := block[k]
			if !bigDone[c1] {
				ptr[copyEnd[c1]] = k
				copyEnd[c1]--
			}
		}

		// The two scans must meet exactly; the second form covers a block made of one
		// repeated byte
		if copyStart[ss]-1 != copyEnd[ss] && !(copyStart[ss] == 0 && copyEnd[ss] == n-1) {
			raise(errCodeCopyPointers, "copy pointers for bucket %#02x did not meet (start %d, end %d)",
				ss, copyStart[ss], copyEnd[ss])
		}

		for j := int32(0); j <= 255; j++ {
			s.done.set(j<<8 + ss)
		}
		bigDone[ss] = true

		// Record the final ranks of this big bucket in the quadrant array. The last
		// bucket is never compared against again.
		if i < 255 {
			bbStart := ftab[ss<<8]
			bbSize := ftab[(ss+1)<<8] - bbStart
			shifts := uint(0)
			for bbSize>>shifts > 65534 {
				shifts++
			}
			for j := bbSize - 1; j >= 0; j-- {
				pos := ptr[bbStart+j]
				q := uint16(j >> shifts)
				s.quad[pos] = q
				for m := pos + n; m < n+overshoot; m += n {
					s.quad[m] = q
				}
			}
		}
	}

	return nil
}

// gtU reports whether the rotation at i1 sorts after the rotation at i2. Each pass
// over eight further bytes spends one unit of budget.
func (s *mainSorter) gtU(i1, i2 int32) bool {
	b := s.block

	for k := 0; k < nQSort; k++ {
		c1, c2 := b[i1], b[i2]
		if c1 != c2 {
			return c1 > c2
		}
		i1++
		i2++
	}

	q := s.quad
	n := s.n
	for k := n + 8; k >= 0; k -= 8 {
		for m := 0; m < 8; m++ {
			c1, c2 := b[i1], b[i2]
			if c1 != c2 {
				return c1 > c2
			}
			s1, s2 := q[i1], q[i2]
			if s1 != s2 {
				return s1 > s2
			}
			i1++
			i2++
		}
		for i1 >= n {
			i1 -= n
		}
		for i2 >= n {
			i2 -= n
		}
		s.budget--
	}

	return false
}

// simpleSort is a Shell sort of ptr[lo..hi] on rotations compared from depth d.
func (s *mainSorter) simpleSort(lo, hi, d int32) error {
	bigN := hi - lo + 1
	if bigN < 2 {
		return nil
	}

	hp := 0
	for incs[hp] < bigN {
		hp++
	}

	ptr := s.ptr
	for hp--; hp >= 0; hp-- {
		h := incs[hp]
		for i := lo + h; i <= hi; i++ {
			v := ptr[i]
			j := i
			for s.gtU(ptr[j-h]+d, v+d) {
				ptr[j] = ptr[j-h]
				j -= h
				if j <= lo+h-1 {
					break
				}
			}
			ptr[j] = v

			if s.budget < 0 {
				return errBudgetExhausted
			}
		}
	}
	return nil
}

// qSort3 is a three-way radix quicksort on the byte at depth d, falling back to
// simpleSort for small partitions and deep recursion.
func (s *mainSorter) qSort3(loSt, hiSt, dSt int32) error {
	block, ptr := s.block, s.ptr
	stack := append(s.stack[:0], span{loSt, hiSt, dSt})
	defer func() { s.stack = stack[:0] }()

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		lo, hi, d := top.lo, top.hi, top.d

		if hi-lo < qsortSmallThresh || d > qsortDepthThresh {
			if err := s.simpleSort(lo, hi, d); err != nil {
				return err
			}
			continue
		}

		med := int32(med3(block[ptr[lo]+d], block[ptr[hi]+d], block[ptr[(lo+hi)>>1]+d]))

		unLo, ltLo := lo, lo
		unHi, gtHi := hi, hi
		for {
			for unLo <= unHi {
				diff := int32(block[ptr[unLo]+d]) - med
				if diff == 0 {
					ptr[unLo], ptr[ltLo] = ptr[ltLo], ptr[unLo]
					ltLo++
					unLo++
					continue
				}
				if diff > 0 {
					break
				}
				unLo++
			}
			for unLo <= unHi {
				diff := int32(block[ptr[unHi]+d]) - med
				if diff == 0 {
					ptr[unHi], ptr[gtHi] = ptr[gtHi], ptr[unHi]
					gtHi--
					unHi--
					continue
				}
				if diff < 0 {
					break
				}
				unHi--
			}
			if unLo > unHi {
				break
			}
			ptr[unLo], ptr[unHi] = ptr[unHi], ptr[unLo]
			unLo++
			unHi--
		}

		if gtHi < ltLo {
			// All equal at this depth; look one byte further
			stack = append(stack, span{lo, hi, d + 1})
			continue
		}

		n := min(ltLo-lo, unLo-ltLo)
		vswap(ptr, lo, unLo-n, n)
		m := min(hi-gtHi, gtHi-unHi)
		vswap(ptr, unLo, hi-m+1, m)

		n = lo + unLo - ltLo - 1
		m = hi - (gtHi - unHi) + 1

		next := [3]span{
			{lo, n, d},
			{m, hi, d},
			{n + 1, m - 1, d + 1},
		}
		// Largest first, so the smallest partition is popped next
		if size(next[0]) < size(next[1]) {
			next[0], next[1] = next[1], next[0]
		}
		if size(next[1]) < size(next[2]) {
			next[1], next[2] = next[2], next[1]
		}
		if size(next[0]) < size(next[1]) {
			next[0], next[1] = next[1], next[0]
		}
		stack = append(stack, next[0], next[1], next[2])
	}
	return nil
}

func size(sp span) int32 {
	return sp.hi - sp.lo
}

func med3(a, b, c byte) byte {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
		if a > b {
			b = a
		}
	}
	return b
}
