// Package agreement implements nominal-level inter-rater agreement
// scoring: a Krippendorff-style alpha coefficient over a full rater by
// unit matrix, and a per-unit local disagreement score used to flag
// units for reannotation.
//
// The two scores treat missing values differently on purpose. Alpha
// excludes absent values entirely, so it summarizes disagreement among
// raters who actually answered. Local scores count absence as its own
// category, so thin or inconsistent coverage drags a unit's score down.
//
// All functions are pure and deterministic: categories, raters, and
// units are iterated in sorted order, so repeated runs over the same
// data are bit-for-bit identical regardless of map insertion order.
package agreement

import (
	"cmp"
	"math"
	"slices"
)

// Matrix maps rater -> unit -> value for one dimension. A missing
// (rater, unit) entry means the rater did not answer that unit.
type Matrix[V cmp.Ordered] map[string]map[string]V

// Alpha computes the global agreement coefficient for one dimension.
//
// Degenerate inputs resolve to documented sentinels rather than errors:
// fewer than two distinct categories yields 1.0 (no disagreement is
// possible), and zero expected disagreement yields 1.0 when none was
// observed and 0.0 otherwise.
func Alpha[V cmp.Ordered](m Matrix[V]) float64 {
	raters := sortedKeys(m)

	unitSet := make(map[string]struct{})
	catSet := make(map[V]struct{})
	for _, r := range raters {
		for u, v := range m[r] {
			unitSet[u] = struct{}{}
			catSet[v] = struct{}{}
		}
	}
	if len(catSet) < 2 {
		return 1.0
	}

	cats := sortedSet(catSet)
	idx := make(map[V]int, len(cats))
	for i, c := range cats {
		idx[c] = i
	}
	units := sortedSet(unitSet)

	k := len(cats)
	co := make([][]float64, k)
	for i := range co {
		co[i] = make([]float64, k)
	}

	// Coincidence matrix: each unit contributes its ordered value pairs
	// weighted by 1/(m-1), where m is the raters who answered the unit.
	for _, u := range units {
		cnt := make([]int, k)
		answered := 0
		for _, r := range raters {
			if v, ok := m[r][u]; ok {
				cnt[idx[v]]++
				answered++
			}
		}
		if answered < 2 {
			continue
		}
		w := 1.0 / float64(answered-1)
		for c := 0; c < k; c++ {
			if cnt[c] == 0 {
				continue
			}
			for d := 0; d < k; d++ {
				if cnt[d] == 0 {
					continue
				}
				pairs := cnt[c] * cnt[d]
				if c == d {
					pairs = cnt[c] * (cnt[c] - 1)
				}
				co[c][d] += float64(pairs) * w
			}
		}
	}

	nc := make([]float64, k)
	var n, observed float64
	for c := 0; c < k; c++ {
		for d := 0; d < k; d++ {
			nc[c] += co[c][d]
			if c != d {
				observed += co[c][d]
			}
		}
		n += nc[c]
	}

	var expected float64
	if n > 1 {
		for c := 0; c < k; c++ {
			for d := 0; d < k; d++ {
				if c != d {
					expected += nc[c] * nc[d]
				}
			}
		}
		expected /= n - 1
	}

	if expected == 0 {
		if observed == 0 {
			return 1.0
		}
		return 0.0
	}
	return 1 - observed/expected
}

// LocalScores computes the per-unit disagreement score for every unit,
// treating an absent value as an explicit category so every rater
// contributes to every unit's denominator. The units slice fixes the
// dataset scope; units with fewer than two raters in the matrix score
// NaN ("not yet scoreable").
func LocalScores[V cmp.Ordered](m Matrix[V], units []string) map[string]float64 {
	raters := sortedKeys(m)
	scores := make(map[string]float64, len(units))

	catSet := make(map[V]struct{})
	for _, r := range raters {
		for _, v := range m[r] {
			catSet[v] = struct{}{}
		}
	}
	cats := sortedSet(catSet)
	idx := make(map[V]int, len(cats))
	for i, c := range cats {
		idx[c] = i
	}
	sentinel := len(cats)

	sortedUnits := make([]string, len(units))
	copy(sortedUnits, units)
	slices.Sort(sortedUnits)

	// Dataset-wide marginals, absence included.
	counts := make([]int, len(cats)+1)
	for _, r := range raters {
		for _, u := range sortedUnits {
			if v, ok := m[r][u]; ok {
				counts[idx[v]]++
			} else {
				counts[sentinel]++
			}
		}
	}
	total := len(raters) * len(sortedUnits)

	sumSq := 0
	for _, c := range counts {
		sumSq += c * c
	}
	var expected float64
	if total > 1 {
		expected = float64(total*total-sumSq) / float64(total*(total-1))
	}

	perUnit := len(raters)
	for _, u := range sortedUnits {
		if perUnit < 2 {
			scores[u] = math.NaN()
			continue
		}
		uc := make([]int, len(cats)+1)
		for _, r := range raters {
			if v, ok := m[r][u]; ok {
				uc[idx[v]]++
			} else {
				uc[sentinel]++
			}
		}
		ucSumSq := 0
		for _, c := range uc {
			ucSumSq += c * c
		}
		unitDis := float64(perUnit*perUnit-ucSumSq) / float64(perUnit*(perUnit-1))

		if expected == 0 {
			if unitDis == 0 {
				scores[u] = 1.0
			} else {
				scores[u] = 0.0
			}
			continue
		}
		scores[u] = 1 - unitDis/expected
	}

	return scores
}

// LocalScore returns the local disagreement score for a single unit
// within the dataset scoped by units. Units outside that scope score
// NaN.
func LocalScore[V cmp.Ordered](unit string, m Matrix[V], units []string) float64 {
	scores := LocalScores(m, units)
	if s, ok := scores[unit]; ok {
		return s
	}
	return math.NaN()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sortedSet[V cmp.Ordered](set map[V]struct{}) []V {
	out := make([]V, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
