package runtime

import (
	"math"
	"math/big"
)

// Arith is the shared +,-,*,/,compare dispatcher both the tree-walk
// evaluator's builtin fns and the VM's OpAdd/OpSub/OpMul/OpDiv/OpLt/etc.
// call into, so the two backends see bit-identical numeric results. Add,
// Sub and Mul raise ArithmeticErrorKind when an Int result overflows;
// AddPromoting, SubPromoting and MulPromoting widen it to BigInteger
// instead. int/int division that doesn't divide evenly promotes to Ratio,
// and any operand touching Float widens the whole operation to Float.

func numRank(v Value) int {
	switch v.(type) {
	case *Int:
		return 0
	case *BigInteger:
		return 1
	case *Ratio:
		return 2
	case *BigDecimal:
		return 3
	case *Float:
		return 4
	}
	return -1
}

func isNumber(v Value) bool { return numRank(v) >= 0 }

func asFloat64(v Value) float64 {
	switch n := v.(type) {
	case *Int:
		return float64(n.Value)
	case *BigInteger:
		f := new(big.Float).SetInt(n.v)
		out, _ := f.Float64()
		return out
	case *Ratio:
		return n.AsFloat64()
	case *BigDecimal:
		f := new(big.Float).SetInt(n.unscaled)
		scale := new(big.Float).SetFloat64(math.Pow(10, float64(n.scale)))
		f.Quo(f, scale)
		out, _ := f.Float64()
		return out
	}
	return 0
}

func asBigInt(v Value) *big.Int {
	switch n := v.(type) {
	case *Int:
		return big.NewInt(n.Value)
	case *BigInteger:
		return n.v
	}
	return nil
}

func asRatio(v Value) *Ratio {
	switch n := v.(type) {
	case *Int:
		return &Ratio{num: big.NewInt(n.Value), den: big.NewInt(1)}
	case *BigInteger:
		return &Ratio{num: new(big.Int).Set(n.v), den: big.NewInt(1)}
	case *Ratio:
		return n
	}
	return nil
}

// demote collapses a BigInteger that fits back into Int, the mirror of
// promotion on overflow (spec §4.3).
func demote(b *BigInteger) Value {
	if b.FitsInt64() {
		return &Int{Value: b.v.Int64()}
	}
	return b
}

// demoteRatio collapses an integral ratio (denominator 1) back down the
// tower to BigInteger/Int.
func demoteRatio(r *Ratio) Value {
	if r.den.Cmp(big.NewInt(1)) == 0 {
		return demote(&BigInteger{v: r.num})
	}
	return r
}

func addOverflows(a, b int64) bool {
	sum := a + b
	return ((a ^ sum) & (b ^ sum)) < 0
}

func subOverflows(a, b int64) bool {
	diff := a - b
	return ((a ^ b) & (a ^ diff)) < 0
}

func mulOverflows(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	p := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, true
	}
	if p/b != a {
		return 0, true
	}
	return p, false
}

// Add implements the strict + : an overflowing Int+Int operation raises
// ArithmeticErrorKind instead of widening the result (spec §3.1 "Overflow
// on +,-,* is an error"; §4.3). Every other rank combination behaves
// exactly like AddPromoting, since only the Int+Int case has a
// non-overflowing narrower representation to stay in.
func Add(a, b Value) (Value, *Error) {
	if ai, aok := a.(*Int); aok {
		if bi, bok := b.(*Int); bok {
			if addOverflows(ai.Value, bi.Value) {
				return nil, NewError(ArithmeticErrorKind, "integer overflow", Pos{})
			}
			return &Int{Value: ai.Value + bi.Value}, nil
		}
	}
	return AddPromoting(a, b)
}

func Sub(a, b Value) (Value, *Error) {
	if ai, aok := a.(*Int); aok {
		if bi, bok := b.(*Int); bok {
			if subOverflows(ai.Value, bi.Value) {
				return nil, NewError(ArithmeticErrorKind, "integer overflow", Pos{})
			}
			return &Int{Value: ai.Value - bi.Value}, nil
		}
	}
	return SubPromoting(a, b)
}

func Mul(a, b Value) (Value, *Error) {
	if ai, aok := a.(*Int); aok {
		if bi, bok := b.(*Int); bok {
			if p, overflow := mulOverflows(ai.Value, bi.Value); !overflow {
				return &Int{Value: p}, nil
			}
			return nil, NewError(ArithmeticErrorKind, "integer overflow", Pos{})
		}
	}
	return MulPromoting(a, b)
}

// AddPromoting implements the auto-promoting +' across the numeric tower:
// an overflowing Int+Int operation widens to BigInteger instead of raising
// (spec §4.3 "the auto-promoting +', -', *' promote to big-integer on
// overflow instead of raising").
func AddPromoting(a, b Value) (Value, *Error) {
	if !isNumber(a) || !isNumber(b) {
		return nil, NewError(TypeErrorKind, "+ requires numbers", Pos{})
	}
	if numRank(a) == 4 || numRank(b) == 4 {
		return &Float{Value: asFloat64(a) + asFloat64(b)}, nil
	}
	if numRank(a) == 3 || numRank(b) == 3 {
		return BigDecimalAdd(toBigDecimal(a), toBigDecimal(b)), nil
	}
	if numRank(a) <= 1 && numRank(b) <= 1 {
		ai, aok := a.(*Int)
		bi, bok := b.(*Int)
		if aok && bok {
			if !addOverflows(ai.Value, bi.Value) {
				return &Int{Value: ai.Value + bi.Value}, nil
			}
		}
		return demote(BigAdd(promoteBig(a), promoteBig(b))), nil
	}
	return demoteRatio(RatioAdd(asRatio(a), asRatio(b))), nil
}

func SubPromoting(a, b Value) (Value, *Error) {
	if !isNumber(a) || !isNumber(b) {
		return nil, NewError(TypeErrorKind, "- requires numbers", Pos{})
	}
	if numRank(a) == 4 || numRank(b) == 4 {
		return &Float{Value: asFloat64(a) - asFloat64(b)}, nil
	}
	if numRank(a) == 3 || numRank(b) == 3 {
		bd := toBigDecimal(b)
		neg := &BigDecimal{unscaled: new(big.Int).Neg(bd.unscaled), scale: bd.scale}
		return BigDecimalAdd(toBigDecimal(a), neg), nil
	}
	if numRank(a) <= 1 && numRank(b) <= 1 {
		ai, aok := a.(*Int)
		bi, bok := b.(*Int)
		if aok && bok {
			if !subOverflows(ai.Value, bi.Value) {
				return &Int{Value: ai.Value - bi.Value}, nil
			}
		}
		return demote(BigSub(promoteBig(a), promoteBig(b))), nil
	}
	ra, rb := asRatio(a), asRatio(b)
	negB := &Ratio{num: new(big.Int).Neg(rb.num), den: rb.den}
	return demoteRatio(RatioAdd(ra, negB)), nil
}

func MulPromoting(a, b Value) (Value, *Error) {
	if !isNumber(a) || !isNumber(b) {
		return nil, NewError(TypeErrorKind, "* requires numbers", Pos{})
	}
	if numRank(a) == 4 || numRank(b) == 4 {
		return &Float{Value: asFloat64(a) * asFloat64(b)}, nil
	}
	if numRank(a) == 3 || numRank(b) == 3 {
		return BigDecimalMul(toBigDecimal(a), toBigDecimal(b)), nil
	}
	if numRank(a) <= 1 && numRank(b) <= 1 {
		ai, aok := a.(*Int)
		bi, bok := b.(*Int)
		if aok && bok {
			if p, overflow := mulOverflows(ai.Value, bi.Value); !overflow {
				return &Int{Value: p}, nil
			}
		}
		return demote(BigMul(promoteBig(a), promoteBig(b))), nil
	}
	return demoteRatio(RatioMul(asRatio(a), asRatio(b))), nil
}

// Div implements / : int/int that divides evenly stays Int, otherwise
// promotes to Ratio; any Float operand widens to Float (spec §4.3, §9
// Open Question "integer division promotes to Ratio").
func Div(a, b Value) (Value, *Error) {
	if !isNumber(a) || !isNumber(b) {
		return nil, NewError(TypeErrorKind, "/ requires numbers", Pos{})
	}
	if numRank(a) == 4 || numRank(b) == 4 {
		bf := asFloat64(b)
		if bf == 0 {
			return nil, NewError(ArithmeticErrorKind, "divide by zero", Pos{})
		}
		return &Float{Value: asFloat64(a) / bf}, nil
	}
	if numRank(a) == 3 || numRank(b) == 3 {
		af, bf := asFloat64(a), asFloat64(b)
		if bf == 0 {
			return nil, NewError(ArithmeticErrorKind, "divide by zero", Pos{})
		}
		return &Float{Value: af / bf}, nil
	}
	ra, rb := asRatio(a), asRatio(b)
	if rb.num.Sign() == 0 {
		return nil, NewError(ArithmeticErrorKind, "divide by zero", Pos{})
	}
	result := NewRatio(bigMul(ra.num, rb.den), bigMul(ra.den, rb.num))
	return demoteRatio(result), nil
}

// Compare returns -1/0/1 for a<b, a==b, a>b across the numeric tower.
func Compare(a, b Value) (int, *Error) {
	if !isNumber(a) || !isNumber(b) {
		return 0, NewError(TypeErrorKind, "comparison requires numbers", Pos{})
	}
	if numRank(a) == 4 || numRank(b) == 4 {
		af, bf := asFloat64(a), asFloat64(b)
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if numRank(a) == 3 || numRank(b) == 3 {
		return toBigDecimal(a).Cmp(toBigDecimal(b)), nil
	}
	if numRank(a) <= 1 && numRank(b) <= 1 {
		return promoteBig(a).Cmp(promoteBig(b)), nil
	}
	return asRatio(a).Cmp(asRatio(b)), nil
}

func promoteBig(v Value) *BigInteger {
	if bi, ok := v.(*BigInteger); ok {
		return bi
	}
	return NewBigIntegerFromInt64(v.(*Int).Value)
}

func toBigDecimal(v Value) *BigDecimal {
	switch n := v.(type) {
	case *BigDecimal:
		return n
	case *Int:
		return &BigDecimal{unscaled: big.NewInt(n.Value), scale: 0}
	case *BigInteger:
		return &BigDecimal{unscaled: n.v, scale: 0}
	}
	return &BigDecimal{unscaled: big.NewInt(0), scale: 0}
}

// NumEql is the numeric-tower-aware equality `=` uses before falling back
// to Eql's structural comparison for non-numbers (spec §3.2 "= across the
// numeric tower compares value, not representation").
func NumEql(a, b Value) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}
