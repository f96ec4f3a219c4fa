package value

import "strings"

// Compare implements the generic −1/0/+1 comparator that EQ/LT/LE/GT/GE
// delegate to per spec §4.6. Numeric operands are compared with FIXNUM
// promoted to FLOAT when the tags differ (spec §3). Strings compare
// byte-lexicographically. Any other combination reports ok=false; the
// dispatch core then reports an ordering comparison as a bad-operand error
// and does not dispatch to a <=> method.
func Compare(a, b Value) (cmp int, ok bool) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		if a.Tag == FIXNUM && b.Tag == FIXNUM {
			switch {
			case a.i < b.i:
				return -1, true
			case a.i > b.i:
				return 1, true
			default:
				return 0, true
			}
		}
		af, bf := a.AsFloat(), b.AsFloat()
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	case a.Tag == STRING && b.Tag == STRING:
		return strings.Compare(StrOf(a).Go(), StrOf(b).Go()), true
	case a.Tag == SYMBOL && b.Tag == SYMBOL:
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		default:
			return 0, true
		}
	case a.Tag == NIL && b.Tag == NIL, a.Tag == TRUE && b.Tag == TRUE, a.Tag == FALSE && b.Tag == FALSE:
		return 0, true
	default:
		return 0, false
	}
}

// Equal implements the loose equality EQ delegates to: numeric/string/symbol
// comparison where Compare applies, identity for reference types otherwise.
func Equal(a, b Value) bool {
	if cmp, ok := Compare(a, b); ok {
		return cmp == 0
	}
	if a.Tag != b.Tag {
		return false
	}
	return a.ref == b.ref
}
