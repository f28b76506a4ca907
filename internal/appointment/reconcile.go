package appointment

import "sort"

// Diff returns desired − current and current − desired, both sorted and
// free of duplicates.
func Diff(current, desired []int) (toAdd, toRemove []int) {
	cur := toSet(current)
	want := toSet(desired)

	for id := range want {
		if _, ok := cur[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id := range cur {
		if _, ok := want[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	sort.Ints(toAdd)
	sort.Ints(toRemove)
	return toAdd, toRemove
}

// Normalize returns ids sorted with duplicates removed.
func Normalize(ids []int) []int {
	set := toSet(ids)
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Split partitions ids into those not in taken and those in it, both
// normalized.
func Split(ids, taken []int) (free, held []int) {
	t := toSet(taken)
	for _, id := range Normalize(ids) {
		if _, ok := t[id]; ok {
			held = append(held, id)
		} else {
			free = append(free, id)
		}
	}
	return free, held
}
