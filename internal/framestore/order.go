package framestore

import (
	"path/filepath"
	"sort"
)

// NaturalLess orders names so that embedded numbers compare by value:
// frame2 sorts before frame10. Digit runs of any length are compared without
// parsing; leading zeros are ignored and, on equal value, the shorter run wins.
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		aDigit, bDigit := isDigit(a[i]), isDigit(b[j])
		switch {
		case aDigit && bDigit:
			aEnd, bEnd := digitRunEnd(a, i), digitRunEnd(b, j)
			if c := compareDigits(a[i:aEnd], b[j:bEnd]); c != 0 {
				return c < 0
			}
			i, j = aEnd, bEnd
		case aDigit != bDigit:
			return a[i] < b[j]
		default:
			aEnd, bEnd := textRunEnd(a, i), textRunEnd(b, j)
			if a[i:aEnd] != b[j:bEnd] {
				return a[i:aEnd] < b[j:bEnd]
			}
			i, j = aEnd, bEnd
		}
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

// SortNatural sorts paths in place by NaturalLess of their base names.
func SortNatural(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return NaturalLess(filepath.Base(paths[i]), filepath.Base(paths[j]))
	})
}

func compareDigits(a, b string) int {
	at, bt := trimZeros(a), trimZeros(b)
	if len(at) != len(bt) {
		if len(at) < len(bt) {
			return -1
		}
		return 1
	}
	if at != bt {
		if at < bt {
			return -1
		}
		return 1
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

func digitRunEnd(s string, start int) int {
	end := start
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	return end
}

func textRunEnd(s string, start int) int {
	end := start
	for end < len(s) && !isDigit(s[end]) {
		end++
	}
	return end
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
