package huffman

// CodeLengths returns a code length for every symbol of freqs such that no length
// exceeds maxLen. Symbols with zero frequency still receive a code.
//
// Nodes live in flat arrays: leaves are 1..n, merged nodes follow, and each node
// records its parent index. A node weight carries the subtree depth in its low 8 bits,
// so the root weight gives the tree height directly. When the tree is too tall the leaf
// weights are halved and the tree is rebuilt.
func CodeLengths(freqs []uint32, maxLen int) []uint8 {
	n := len(freqs)
	lengths := make([]uint8, n)
	switch n {
	case 0:
		return lengths
	case 1:
		lengths[0] = 1
		return lengths
	}

	weight := make([]uint64, 2*n+1)
	parent := make([]int32, 2*n+1)
	heap := make([]int32, n+2)

	for i, f := range freqs {
		weight[i+1] = uint64(max(f, 1)) << 8
	}

	// less orders by weight, then by node index
	less := func(a, b int32) bool {
		return weight[a] < weight[b] || (weight[a] == weight[b] && a < b)
	}
	up := func(z int) {
		tmp := heap[z]
		for z > 1 && less(tmp, heap[z>>1]) {
			heap[z] = heap[z>>1]
			z >>= 1
		}
		heap[z] = tmp
	}
	down := func(z, size int) {
		tmp := heap[z]
		for {
			y := z << 1
			if y > size {
				break
			}
			if y < size && less(heap[y+1], heap[y]) {
				y++
			}
			if less(tmp, heap[y]) {
				break
			}
			heap[z] = heap[y]
			z = y
		}
		heap[z] = tmp
	}

	for {
		nodes := int32(n)
		size := 0
		for i := int32(1); i <= int32(n); i++ {
			parent[i] = -1
			size++
			heap[size] = i
			up(size)
		}

		for size > 1 {
			n1 := heap[1]
			heap[1] = heap[size]
			size--
			down(1, size)

			n2 := heap[1]
			heap[1] = heap[size]
			size--
			down(1, size)

			nodes++
			parent[n1], parent[n2] = nodes, nodes
			weight[nodes] = addWeights(weight[n1], weight[n2])
			parent[nodes] = -1

			size++
			heap[size] = nodes
			up(size)
		}

		if int(weight[heap[1]]&0xff) <= maxLen {
			break
		}

		// Too tall: flatten the distribution and rebuild
		for i := 1; i <= n; i++ {
			w := weight[i] >> 8
			weight[i] = (1 + w/2) << 8
		}
	}

	for i := 1; i <= n; i++ {
		depth := uint8(0)
		for k := parent[i]; k >= 0; k = parent[k] {
			depth++
		}
		lengths[i-1] = depth
	}
	return lengths
}

func addWeights(a, b uint64) uint64 {
	return ((a &^ 0xff) + (b &^ 0xff)) | (1 + max(a&0xff, b&0xff))
}

// CanonicalCodes assigns codes from lengths: symbols are taken in (length, symbol)
// order, consecutive symbols of one length get consecutive codes, and the code is
// shifted left whenever the length grows.
func CanonicalCodes(lengths []uint8) []uint32 {
	codes := make([]uint32, len(lengths))
	if len(lengths) == 0 {
		return codes
	}

	minLen, maxLen := lengths[0], lengths[0]
	for _, l := range lengths {
		minLen = min(minLen, l)
		maxLen = max(maxLen, l)
	}

	var code uint32
	for n := minLen; n <= maxLen; n++ {
		for i, l := range lengths {
			if l == n {
				codes[i] = code
				code++
			}
		}
		code <<= 1
	}
	return codes
}
