package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const maxInt64 int64 = 1<<63 - 1

func TestAddRaisesOnOverflow(t *testing.T) {
	max := &Int{Value: maxInt64}
	one := &Int{Value: 1}
	_, err := Add(max, one)
	require.NotNil(t, err)
	require.Equal(t, ArithmeticErrorKind, err.Kind)
}

func TestAddPromotingPromotesToBigIntegerOnOverflow(t *testing.T) {
	max := &Int{Value: maxInt64}
	one := &Int{Value: 1}
	result, err := AddPromoting(max, one)
	require.Nil(t, err)
	big, ok := result.(*BigInteger)
	require.True(t, ok, "expected promotion to BigInteger, got %T", result)
	require.Equal(t, "9223372036854775808", big.String())
}

func TestMulRaisesOnOverflow(t *testing.T) {
	max := &Int{Value: maxInt64}
	two := &Int{Value: 2}
	_, err := Mul(max, two)
	require.NotNil(t, err)
	require.Equal(t, ArithmeticErrorKind, err.Kind)
}

func TestSubRaisesOnOverflow(t *testing.T) {
	min := &Int{Value: -maxInt64 - 1}
	one := &Int{Value: 1}
	_, err := Sub(min, one)
	require.NotNil(t, err)
	require.Equal(t, ArithmeticErrorKind, err.Kind)
}

func TestSubDemotesBackToIntWhenItFits(t *testing.T) {
	big := NewBigIntegerFromInt64(maxInt64)
	result, err := Sub(big, &Int{Value: 0})
	require.Nil(t, err)
	i, ok := result.(*Int)
	require.True(t, ok, "expected demotion back to Int, got %T", result)
	require.Equal(t, maxInt64, i.Value)
}

func TestDivPromotesToRatioWhenNotExact(t *testing.T) {
	result, err := Div(&Int{Value: 1}, &Int{Value: 3})
	require.Nil(t, err)
	_, ok := result.(*Ratio)
	require.True(t, ok, "expected 1/3 to promote to Ratio, got %T", result)
}

func TestDivStaysIntWhenExact(t *testing.T) {
	result, err := Div(&Int{Value: 6}, &Int{Value: 3})
	require.Nil(t, err)
	i, ok := result.(*Int)
	require.True(t, ok, "expected 6/3 to stay Int, got %T", result)
	require.Equal(t, int64(2), i.Value)
}

func TestAnyFloatOperandWidensWholeOp(t *testing.T) {
	result, err := Add(&Int{Value: 1}, &Float{Value: 2.5})
	require.Nil(t, err)
	f, ok := result.(*Float)
	require.True(t, ok, "expected Float result, got %T", result)
	require.Equal(t, 3.5, f.Value)
}

func TestCompareAcrossTower(t *testing.T) {
	cmp, err := Compare(&Int{Value: 1}, &Float{Value: 1.0})
	require.Nil(t, err)
	require.Equal(t, 0, cmp)
}

func TestMulRejectsNonNumbers(t *testing.T) {
	_, err := Mul(&Int{Value: 1}, &Str{Value: "x"})
	require.NotNil(t, err)
	require.Equal(t, TypeErrorKind, err.Kind)
}
