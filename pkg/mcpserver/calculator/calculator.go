// Package calculator is a demo MCP server exposing a small set of
// arithmetic tools, used by cmd/agentcored and cmd/agentcorectl as the
// local stdio tool server that exercises the runtime end to end.
package calculator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer builds an MCP server exposing sum, product, and divide tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"calculator",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool("sum",
		mcp.WithDescription("Calculates the sum of an array of numbers"),
		mcp.WithArray("numbers",
			mcp.Required(),
			mcp.Description("Array of numbers to sum"),
			mcp.Items(map[string]any{"type": "number"}),
		),
	), sumHandler)

	s.AddTool(mcp.NewTool("product",
		mcp.WithDescription("Calculates the product of an array of numbers"),
		mcp.WithArray("numbers",
			mcp.Required(),
			mcp.Description("Array of numbers to multiply"),
			mcp.Items(map[string]any{"type": "number"}),
		),
	), productHandler)

	s.AddTool(mcp.NewTool("divide",
		mcp.WithDescription("Divides one number by another"),
		mcp.WithNumber("dividend", mcp.Required(), mcp.Description("Number to divide")),
		mcp.WithNumber("divisor", mcp.Required(), mcp.Description("Number to divide by")),
	), divideHandler)

	return s
}

func sumHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	numbers, err := numbersArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sum float64
	for _, n := range numbers {
		sum += n
	}
	return mcp.NewToolResultText(formatFloat(sum)), nil
}

func productHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	numbers, err := numbersArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	product := 1.0
	for _, n := range numbers {
		product *= n
	}
	return mcp.NewToolResultText(formatFloat(product)), nil
}

func divideHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	dividend, ok := toFloat64(args["dividend"])
	if !ok {
		return mcp.NewToolResultError("dividend must be a number"), nil
	}
	divisor, ok := toFloat64(args["divisor"])
	if !ok {
		return mcp.NewToolResultError("divisor must be a number"), nil
	}
	if divisor == 0 {
		return mcp.NewToolResultError("cannot divide by zero"), nil
	}

	return mcp.NewToolResultText(formatFloat(dividend / divisor)), nil
}

// numbersArg extracts and converts the "numbers" array argument every
// variadic tool in this package takes.
func numbersArg(request mcp.CallToolRequest) ([]float64, error) {
	args := request.GetArguments()
	raw, ok := args["numbers"]
	if !ok {
		return nil, fmt.Errorf("numbers argument is required")
	}
	return toFloat64Slice(raw)
}

func toFloat64Slice(v any) ([]float64, error) {
	switch arr := v.(type) {
	case []any:
		result := make([]float64, len(arr))
		for i, elem := range arr {
			f, ok := toFloat64(elem)
			if !ok {
				return nil, fmt.Errorf("element %d is not a number: %T", i, elem)
			}
			result[i] = f
		}
		return result, nil
	case []float64:
		return arr, nil
	case []int:
		result := make([]float64, len(arr))
		for i, n := range arr {
			result[i] = float64(n)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", v)
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// formatFloat formats a float64 as a string, removing trailing zeros.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
