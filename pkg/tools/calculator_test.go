package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculator_Evaluate(t *testing.T) {
	calc := NewCalculatorTool()

	cases := []struct {
		expression string
		want       string
	}{
		{"2 + 3", "5"},
		{"(2+3)*4", "20"},
		{"2**10", "1024"},
		{"37593 * 67", "2518731"},
		{"10 / 4", "2.5"},
		{"sqrt(16)", "4"},
		{"pow(2, 8)", "256"},
		{"abs(-3.5)", "3.5"},
		{"floor(2.9) + ceil(2.1)", "5"},
	}
	for _, tc := range cases {
		got, err := calc.Evaluate(tc.expression)
		require.NoError(t, err, tc.expression)
		require.Equal(t, tc.want, got, tc.expression)
	}
}

func TestCalculator_MalformedExpressionReturnsErrorString(t *testing.T) {
	calc := NewCalculatorTool()
	got, err := calc.Evaluate("not an expr")
	require.NoError(t, err, "malformed input must not raise past the tool boundary")
	require.True(t, strings.HasPrefix(got, "calculation error:"), got)
}

func TestCalculator_EmptyExpression(t *testing.T) {
	calc := NewCalculatorTool()
	_, err := calc.Evaluate("   ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCalculator_DeniedTokens(t *testing.T) {
	calc := NewCalculatorTool()
	for _, expression := range []string{"exec(1)", "__debug__", "import os", "eval(2+2)"} {
		got, err := calc.Evaluate(expression)
		require.NoError(t, err)
		require.Contains(t, got, "disallowed token", expression)
	}
}

func TestCalculator_DivisionByZero(t *testing.T) {
	calc := NewCalculatorTool()
	got, err := calc.Evaluate("1/0")
	require.NoError(t, err)
	require.Equal(t, "calculation error: result is not a finite number", got)
}

func TestCalculator_UnsupportedResultType(t *testing.T) {
	calc := NewCalculatorTool()
	got, err := calc.Evaluate("1 < 2")
	require.NoError(t, err)
	require.Contains(t, got, "unsupported result type")
}

func TestCalculator_RunExtractsArgument(t *testing.T) {
	calc := NewCalculatorTool()
	out, err := calc.Run(context.Background(), map[string]any{"expression": "6*7"})
	require.NoError(t, err)
	require.Equal(t, "42", out)

	_, err = calc.Run(context.Background(), map[string]any{})
	require.ErrorIs(t, err, ErrInvalidInput)
}
