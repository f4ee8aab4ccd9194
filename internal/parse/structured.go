package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/infrapilot/infrapilot/internal/ir"
)

// identifierKeys are the JSON keys read as the identifier, in priority order.
var identifierKeys = []string{
	"identifier", "name", "id",
	"stack_name", "stackName", "StackName",
	"bucket", "bucket_name", "table", "table_name",
	"instance_id", "InstanceId",
	"container", "volume", "image_name",
}

// Structured decodes raw as a JSON object and reads the known keys.
func Structured(raw string) (*ir.ActionRequest, bool) {
	req, ok := decodeObject(raw)
	if !ok || req.Identifier == "" {
		return nil, false
	}
	return req, true
}

func decodeObject(raw string) (*ir.ActionRequest, bool) {
	if !strings.HasPrefix(raw, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}

	req := &ir.ActionRequest{Structured: obj}
	for _, key := range identifierKeys {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			req.Identifier = strings.TrimSpace(v)
			break
		}
	}
	if v, ok := obj["region"].(string); ok {
		req.Region = strings.TrimSpace(v)
	}

	for k, v := range obj {
		if k == "region" {
			continue
		}
		if s, ok := scalarString(v); ok {
			if req.Params == nil {
				req.Params = make(map[string]string)
			}
			req.Params[k] = s
		}
	}
	return req, true
}

func isObject(raw string) bool {
	var obj map[string]any
	return strings.HasPrefix(raw, "{") && json.Unmarshal([]byte(raw), &obj) == nil
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64, bool:
		return fmt.Sprint(val), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := scalarString(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	}
	return "", false
}
