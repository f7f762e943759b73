package similarity

// Ratcliff/Obershelp "gestalt" matching, compatible with the ratio produced by
// Python's difflib.SequenceMatcher with no junk function and autojunk enabled.

const (
	// autojunkMinLen is the length of the second sequence from which popular
	// elements stop seeding matches.
	autojunkMinLen = 200
)

// matchRange is a half-open window [alo,ahi) x [blo,bhi) still to be searched
type matchRange struct {
	alo, ahi, blo, bhi int
}

// sequenceMatcher finds matching blocks between a and b. It is not safe for
// concurrent use; each worker owns its own instance.
type sequenceMatcher struct {
	a, b []rune
	b2j  map[rune][]int

	// j2len tables indexed by j+1, reused between calls
	j2len    []int
	newj2len []int
	touched  []int
	touched2 []int
	queue    []matchRange
}

func newSequenceMatcher() *sequenceMatcher {
	return &sequenceMatcher{b2j: make(map[rune][]int)}
}

// setSeqs installs the two sequences and rebuilds the b index
func (m *sequenceMatcher) setSeqs(a, b []rune) {
	m.a = a
	m.b = b

	for k := range m.b2j {
		delete(m.b2j, k)
	}
	for j, r := range b {
		m.b2j[r] = append(m.b2j[r], j)
	}

	if n := len(b); n >= autojunkMinLen {
		ntest := n/100 + 1
		for r, idxs := range m.b2j {
			if len(idxs) > ntest {
				delete(m.b2j, r)
			}
		}
	}

	if cap(m.j2len) < len(b)+1 {
		m.j2len = make([]int, len(b)+1)
		m.newj2len = make([]int, len(b)+1)
	} else {
		m.j2len = m.j2len[:len(b)+1]
		m.newj2len = m.newj2len[:len(b)+1]
	}
}

// longestMatch returns the longest block a[i:i+k] == b[j:j+k] inside the window.
// Among equal-length blocks the one starting earliest in a wins, then earliest in b.
func (m *sequenceMatcher) longestMatch(alo, ahi, blo, bhi int) (int, int, int) {
	a, b := m.a, m.b
	besti, bestj, bestsize := alo, blo, 0

	j2len, newj2len := m.j2len, m.newj2len
	touched, touched2 := m.touched[:0], m.touched2[:0]

	for i := alo; i < ahi; i++ {
		touched2 = touched2[:0]
		for _, j := range m.b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j] + 1
			newj2len[j+1] = k
			touched2 = append(touched2, j+1)
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		for _, t := range touched {
			j2len[t] = 0
		}
		j2len, newj2len = newj2len, j2len
		touched, touched2 = touched2, touched
	}
	for _, t := range touched {
		j2len[t] = 0
	}
	m.j2len, m.newj2len = j2len, newj2len
	m.touched, m.touched2 = touched, touched2

	// Popular elements never seed a match but may extend one
	for besti > alo && bestj > blo && a[besti-1] == b[bestj-1] {
		besti--
		bestj--
		bestsize++
	}
	for besti+bestsize < ahi && bestj+bestsize < bhi && a[besti+bestsize] == b[bestj+bestsize] {
		bestsize++
	}

	return besti, bestj, bestsize
}

// matchedLength returns the total size of all matching blocks
func (m *sequenceMatcher) matchedLength() int {
	total := 0
	m.queue = append(m.queue[:0], matchRange{0, len(m.a), 0, len(m.b)})
	for len(m.queue) > 0 {
		r := m.queue[len(m.queue)-1]
		m.queue = m.queue[:len(m.queue)-1]

		i, j, k := m.longestMatch(r.alo, r.ahi, r.blo, r.bhi)
		if k == 0 {
			continue
		}
		total += k
		if r.alo < i && r.blo < j {
			m.queue = append(m.queue, matchRange{r.alo, i, r.blo, j})
		}
		if i+k < r.ahi && j+k < r.bhi {
			m.queue = append(m.queue, matchRange{i + k, r.ahi, j + k, r.bhi})
		}
	}
	return total
}

// ratio returns 2*M/T for the installed sequences; two empty sequences score 1.0
func (m *sequenceMatcher) ratio() float64 {
	t := len(m.a) + len(m.b)
	if t == 0 {
		return 1.0
	}
	return 2.0 * float64(m.matchedLength()) / float64(t)
}
