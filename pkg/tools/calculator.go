package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/comigor/stockagent-go/internal/logger"
)

// deniedTokens are code-execution-like substrings rejected before the
// expression ever reaches the evaluator.
var deniedTokens = []string{
	"__", "import", "exec", "eval", "compile", "open", "lambda",
	"os.", "sys.", "subprocess",
}

func argFloat(name string, fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", name, len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%s expects a number", name)
		}
		return fn(v), nil
	}
}

var calcFunctions = map[string]govaluate.ExpressionFunction{
	"sqrt":  argFloat("sqrt", math.Sqrt),
	"abs":   argFloat("abs", math.Abs),
	"exp":   argFloat("exp", math.Exp),
	"log":   argFloat("log", math.Log),
	"log10": argFloat("log10", math.Log10),
	"sin":   argFloat("sin", math.Sin),
	"cos":   argFloat("cos", math.Cos),
	"tan":   argFloat("tan", math.Tan),
	"floor": argFloat("floor", math.Floor),
	"ceil":  argFloat("ceil", math.Ceil),
	"round": argFloat("round", math.Round),
	"pow": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		base, bok := args[0].(float64)
		exponent, eok := args[1].(float64)
		if !bok || !eok {
			return nil, fmt.Errorf("pow expects numbers")
		}
		return math.Pow(base, exponent), nil
	},
}

// CalculatorTool evaluates arithmetic expressions. Evaluation is restricted
// to numeric expressions, exponentiation (**) and the calcFunctions table;
// every evaluation failure is encoded as a "calculation error" result string
// so it never crosses the tool boundary as an error value.
type CalculatorTool struct{}

// NewCalculatorTool creates the calculator tool.
func NewCalculatorTool() *CalculatorTool { return &CalculatorTool{} }

type calculatorArgs struct {
	Expression string `json:"expression" jsonschema:"description=A single-line mathematical expression to evaluate. For example: \"37593 * 67\" or \"37593**(1/5)\"."`
}

func (t *CalculatorTool) Name() string { return "calculator" }

func (t *CalculatorTool) Description() string {
	return "Evaluates a single-line mathematical expression and returns the result."
}

func (t *CalculatorTool) Parameters() any { return SchemaFor(&calculatorArgs{}) }

// Run extracts the expression argument and evaluates it.
func (t *CalculatorTool) Run(ctx context.Context, args map[string]any) (string, error) {
	expression, _ := args["expression"].(string)
	return t.Evaluate(expression)
}

// Evaluate evaluates the expression. Only an empty expression produces an
// error value; anything else that goes wrong is returned as a descriptive
// result string.
func (t *CalculatorTool) Evaluate(expression string) (string, error) {
	if strings.TrimSpace(expression) == "" {
		return "", fmt.Errorf("%w: expression is empty", ErrInvalidInput)
	}

	lowered := strings.ToLower(expression)
	for _, token := range deniedTokens {
		if strings.Contains(lowered, token) {
			logger.L.Warn("calculator rejected expression", "token", token)
			return fmt.Sprintf("calculation error: expression contains disallowed token %q", token), nil
		}
	}

	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, calcFunctions)
	if err != nil {
		return "calculation error: " + err.Error(), nil
	}

	result, err := expr.Evaluate(nil)
	if err != nil {
		return "calculation error: " + err.Error(), nil
	}

	value, ok := result.(float64)
	if !ok {
		return fmt.Sprintf("calculation error: unsupported result type %T", result), nil
	}
	// Division by zero in float arithmetic yields Inf rather than an
	// evaluator error; surface it the same way as any other failure.
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return "calculation error: result is not a finite number", nil
	}

	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	logger.L.Debug("calculator evaluated expression", "expression", expression, "result", formatted)
	return formatted, nil
}
