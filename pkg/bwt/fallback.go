package bwt

const (
	fallbackSmallThresh = 10

	// Alternating set/clear marks past the end of the boundary bitset stop the bucket
	// scan without explicit bounds checks.
	boundarySentinels = 32
)

type span struct {
	lo, hi, d int32
}

// fallbackSort sorts the rotations of block by prefix doubling. Positions start in
// buckets of equal first byte; each round ranks every position by the bucket of the
// position h further on and splits the buckets by that rank, so after the round with
// step h buckets hold rotations sharing their first 2h bytes. The running time does
// not depend on how repetitive the block is.
func fallbackSort(block []byte) []int32 {
	n := int32(len(block))
	fmap := make([]int32, n)
	eclass := make([]int32, n)

	// 1-byte radix sort seeds fmap and the initial bucket boundaries
	var ftab [257]int32
	for _, b := range block {
		ftab[b]++
	}
	for i := 1; i < 257; i++ {
		ftab[i] += ftab[i-1]
	}
	for i := int32(0); i < n; i++ {
		b := block[i]
		k := ftab[b] - 1
		ftab[b] = k
		fmap[k] = i
	}

	bh := newBitset(int(n) + 2*boundarySentinels + 64)
	for i := 0; i < 256; i++ {
		bh.set(ftab[i])
	}
	for i := int32(0); i < boundarySentinels; i++ {
		bh.set(n + 2*i)
		bh.clear(n + 2*i + 1)
	}

	for h := int32(1); ; {
		// Rank each position by the bucket holding the position h ahead
		j := int32(0)
		for i := int32(0); i < n; i++ {
			if bh.test(i) {
				j = i
			}
			k := fmap[i] - h
			if k < 0 {
				k += n
			}
			eclass[k] = j
		}

		notDone := 0
		r := int32(-1)
		for {
			// Find the next bucket [l, r] with more than one member
			k := bh.nextClear(r + 1)
			l := k - 1
			if l >= n {
				break
			}
			k = bh.nextSet(k)
			r = k - 1
			if r >= n {
				break
			}

			if r > l {
				notDone += int(r - l + 1)
				fallbackQSort3(fmap, eclass, l, r)

				cc := int32(-1)
				for i := l; i <= r; i++ {
					cc1 := eclass[fmap[i]]
					if cc != cc1 {
						bh.set(i)
						cc = cc1
					}
				}
			}
		}

		h *= 2
		if h > n || notDone == 0 {
			break
		}
	}

	verifyFirstByteBuckets(block, fmap)
	return fmap
}

// verifyFirstByteBuckets checks that refinement never moved a position out of the
// bucket of its first byte.
func verifyFirstByteBuckets(block []byte, fmap []int32) {
	var counts [256]int32
	for _, b := range block {
		counts[b]++
	}
	pos := int32(0)
	for c := 0; c < 256; c++ {
		for end := pos + counts[c]; pos < end; pos++ {
			if block[fmap[pos]] != byte(c) {
				raise(errCodeBucketOrder, "fallback sort left position %d outside the bucket of byte %#02x", fmap[pos], c)
			}
		}
	}
}

// fallbackQSort3 sorts fmap[loSt..hiSt] by eclass with a three-way partition. The pivot
// is taken from the low, middle or high element according to a small linear
// congruential sequence.
func fallbackQSort3(fmap, eclass []int32, loSt, hiSt int32) {
	var r uint32
	stack := make([]span, 0, 32)
	stack = append(stack, span{lo: loSt, hi: hiSt})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		lo, hi := top.lo, top.hi

		if hi-lo < fallbackSmallThresh {
			fallbackSimpleSort(fmap, eclass, lo, hi)
			continue
		}

		r = (r*7621 + 1) % 32768
		var med int32
		switch r % 3 {
		case 0:
			med = eclass[fmap[lo]]
		case 1:
			med = eclass[fmap[(lo+hi)>>1]]
		default:
			med = eclass[fmap[hi]]
		}

		unLo, ltLo := lo, lo
		unHi, gtHi := hi, hi
		for {
			for unLo <= unHi {
				d := eclass[fmap[unLo]] - med
				if d == 0 {
					fmap[unLo], fmap[ltLo] = fmap[ltLo], fmap[unLo]
					ltLo++
					unLo++
					continue
				}
				if d > 0 {
					break
				}
				unLo++
			}
			for unLo <= unHi {
				d := eclass[fmap[unHi]] - med
				if d == 0 {
					fmap[unHi], fmap[gtHi] = fmap[gtHi], fmap[unHi]
					gtHi--
					unHi--
					continue
				}
				if d < 0 {
					break
				}
				unHi--
			}
			if unLo > unHi {
				break
			}
			fmap[unLo], fmap[unHi] = fmap[unHi], fmap[unLo]
			unLo++
			unHi--
		}

		if gtHi < ltLo {
			// Every element equals the pivot
			continue
		}

		n := min(ltLo-lo, unLo-ltLo)
		vswap(fmap, lo, unLo-n, n)
		m := min(hi-gtHi, gtHi-unHi)
		vswap(fmap, unLo, hi-m+1, m)

		n = lo + unLo - ltLo - 1
		m = hi - (gtHi - unHi) + 1

		// Push the larger side first so the smaller one is handled next
		if n-lo > hi-m {
			stack = append(stack, span{lo: lo, hi: n}, span{lo: m, hi: hi})
		} else {
			stack = append(stack, span{lo: m, hi: hi}, span{lo: lo, hi: n})
		}
	}
}

// fallbackSimpleSort is an insertion sort with a stride-4 pre-pass.
func fallbackSimpleSort(fmap, eclass []int32, lo, hi int32) {
	if lo == hi {
		return
	}

	if hi-lo > 3 {
		for i := hi - 4; i >= lo; i-- {
			tmp := fmap[i]
			ec := eclass[tmp]
			j := i + 4
			for ; j <= hi && ec > eclass[fmap[j]]; j += 4 {
				fmap[j-4] = fmap[j]
			}
			fmap[j-4] = tmp
		}
	}

	for i := hi - 1; i >= lo; i-- {
		tmp := fmap[i]
		ec := eclass[tmp]
		j := i + 1
		for ; j <= hi && ec > eclass[fmap[j]]; j++ {
			fmap[j-1] = fmap[j]
		}
		fmap[j-1] = tmp
	}
}

// vswap exchanges the n-element runs starting at a and b.
func vswap(p []int32, a, b, n int32) {
	for ; n > 0; n-- {
		p[a], p[b] = p[b], p[a]
		a++
		b++
	}
}
