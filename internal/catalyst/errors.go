package catalyst

import (
	"fmt"
	"sort"
	"strings"
)

// APIError is returned when the controller answers with a non-2xx status or an
// error-shaped body. Its message carries the call verbatim so the operator can
// replay it.
type APIError struct {
	Family     string
	Function   string
	Params     Params
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalyst: %s.%s(%s) failed: status %d: %s",
		e.Family, e.Function, formatParams(e.Params), e.StatusCode, strings.TrimSpace(e.Body))
}

func formatParams(p Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k == PayloadParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	if _, ok := p[PayloadParam]; ok {
		parts = append(parts, "payload=...")
	}
	return strings.Join(parts, ", ")
}
