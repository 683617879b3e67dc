package httptool

import (
	"context"

	"github.com/pompdany/gatekeeper/internal/tools"
)

// ToolName is the registry name of the outbound HTTP capability.
const ToolName = "make_http_request"

// HTTPTool wraps an Invoker as a registry tool. The handler never
// returns an error — the invoker formats all failures as observations —
// so the model always receives a string result it can reason about.
func HTTPTool(inv *Invoker) *tools.Tool {
	return &tools.Tool{
		Name:        ToolName,
		Description: "Make an outbound HTTP request and return the status and response body.",
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"url": {
					Type:        "string",
					Description: "Target URL",
				},
				"method": {
					Type:        "string",
					Description: "HTTP method",
					Enum:        []string{"GET", "POST"},
				},
				"headers": {
					Type:        "string",
					Description: "Optional request headers as a JSON object string",
				},
				"data": {
					Type:        "string",
					Description: "Optional JSON body string for POST requests",
				},
			},
			Required: []string{"url", "method"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			url, _ := args["url"].(string)
			method, _ := args["method"].(string)
			headers, _ := args["headers"].(string)
			data, _ := args["data"].(string)
			return inv.Invoke(ctx, method, url, headers, data), nil
		},
	}
}
