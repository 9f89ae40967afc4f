package trainer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets so that
// each label keeps its share of the data. The test set has
// ceil(fraction*n) rows, apportioned between labels by largest remainder.
// Both slices are returned in ascending order.
func StratifiedSplit(labels []int, fraction float64, seed int64) (train, test []int, err error) {
	n := len(labels)
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("split fraction must be within (0,1), got %v", fraction)
	}

	byClass := map[int][]int{}
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	nTest := int(math.Ceil(fraction * float64(n)))
	if nTest >= n || nTest < len(classes) || n-nTest < len(classes) {
		return nil, nil, fmt.Errorf("cannot split %d rows of %d classes with fraction %v", n, len(classes), fraction)
	}

	quota := make(map[int]int, len(classes))
	type remainder struct {
		class int
		frac  float64
	}
	rems := make([]remainder, 0, len(classes))
	assigned := 0
	for _, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / float64(n)
		q := int(math.Floor(exact))
		quota[c] = q
		assigned += q
		rems = append(rems, remainder{class: c, frac: exact - float64(q)})
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < nTest; i++ {
		quota[rems[i%len(rems)].class]++
		assigned++
	}

	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	for _, c := range classes {
		idx := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		test = append(test, idx[:quota[c]]...)
		train = append(train, idx[quota[c]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
