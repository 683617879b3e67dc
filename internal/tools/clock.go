package tools

import (
	"context"
	"time"
)

// ClockTool returns the get_current_time capability. It takes no
// arguments and reports server time.
func ClockTool() *Tool {
	return clockTool(time.Now)
}

func clockTool(now func() time.Time) *Tool {
	return &Tool{
		Name:        "get_current_time",
		Description: "Get current server time",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return now().Format("2006-01-02 15:04:05"), nil
		},
	}
}
