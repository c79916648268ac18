package chapters

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidSelection = errors.New("invalid chapter selection")

// ParseSelection turns "all", "3", "1,3-5" and the like into sorted, unique
// 1-based indices within [1, n]. Out-of-range indices are dropped.
func ParseSelection(expr string, n int) ([]int, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidSelection)
	}

	if strings.EqualFold(expr, "all") {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out, nil
	}

	set := map[int]struct{}{}
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, err := parseRange(part)
		if err != nil {
			return nil, err
		}

		for i := max(lo, 1); i <= min(hi, n); i++ {
			set[i] = struct{}{}
		}
	}

	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)

	return out, nil
}

func parseRange(part string) (int, int, error) {
	if a, b, ok := strings.Cut(part, "-"); ok {
		lo, err1 := atoi(a)
		hi, err2 := atoi(b)
		if err1 != nil || err2 != nil || lo > hi {
			return 0, 0, fmt.Errorf("%w: bad range %q", ErrInvalidSelection, part)
		}
		return lo, hi, nil
	}

	i, err := atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad index %q", ErrInvalidSelection, part)
	}
	return i, i, nil
}

// Select returns the chapters picked by expr, in list order.
func Select(all []Chapter, expr string) ([]Chapter, error) {
	idx, err := ParseSelection(expr, len(all))
	if err != nil {
		return nil, err
	}

	out := make([]Chapter, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i-1])
	}
	return out, nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
