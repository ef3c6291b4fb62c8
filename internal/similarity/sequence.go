package similarity

import "sort"

// autojunkMinLen is the sequence length at which popular elements of b stop
// seeding matches.
const autojunkMinLen = 200

// SequenceRatio returns the Ratcliff/Obershelp similarity 2*M/T of a and b,
// where M is the number of runes in matching blocks and T the total length.
// Two empty inputs return 1.
func SequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	m := newMatcher(ra, rb)
	return 2.0 * float64(m.matchedRunes()) / float64(total)
}

type block struct {
	i, j, size int
}

type sequenceMatcher struct {
	a, b []rune
	b2j  map[rune][]int
}

func newMatcher(a, b []rune) *sequenceMatcher {
	b2j := make(map[rune][]int)
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	// Elements occurring in more than 1% of a long b are too common to seed a
	// match. They can still extend one.
	if n := len(b); n >= autojunkMinLen {
		limit := n/100 + 1
		for r, idxs := range b2j {
			if len(idxs) > limit {
				delete(b2j, r)
			}
		}
	}

	return &sequenceMatcher{a: a, b: b, b2j: b2j}
}

// longestMatch finds the longest matching block in a[alo:ahi] x b[blo:bhi],
// preferring the earliest start in a, then in b.
func (m *sequenceMatcher) longestMatch(alo, ahi, blo, bhi int) block {
	besti, bestj, bestsize := alo, blo, 0

	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}

	for besti > alo && bestj > blo && m.a[besti-1] == m.b[bestj-1] {
		besti, bestj, bestsize = besti-1, bestj-1, bestsize+1
	}
	for besti+bestsize < ahi && bestj+bestsize < bhi && m.a[besti+bestsize] == m.b[bestj+bestsize] {
		bestsize++
	}

	return block{i: besti, j: bestj, size: bestsize}
}

func (m *sequenceMatcher) matchingBlocks() []block {
	type span struct{ alo, ahi, blo, bhi int }

	queue := []span{{0, len(m.a), 0, len(m.b)}}
	var blocks []block
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		x := m.longestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if x.size == 0 {
			continue
		}
		blocks = append(blocks, x)
		if s.alo < x.i && s.blo < x.j {
			queue = append(queue, span{s.alo, x.i, s.blo, x.j})
		}
		if x.i+x.size < s.ahi && x.j+x.size < s.bhi {
			queue = append(queue, span{x.i + x.size, s.ahi, x.j + x.size, s.bhi})
		}
	}

	sort.Slice(blocks, func(p, q int) bool {
		if blocks[p].i != blocks[q].i {
			return blocks[p].i < blocks[q].i
		}
		return blocks[p].j < blocks[q].j
	})
	return blocks
}

func (m *sequenceMatcher) matchedRunes() int {
	total := 0
	for _, b := range m.matchingBlocks() {
		total += b.size
	}
	return total
}
