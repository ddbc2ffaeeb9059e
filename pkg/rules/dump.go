package rules

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// redactedHeaders never appear in a dump with their value.
var redactedHeaders = []string{"Authorization", "Cookie", "Proxy-Authorization"}

// BuildDump writes the audit record of one HTTP exchange. resp may be nil
// when no response arrived; responseBody then carries the error text.
func BuildDump(req *http.Request, resp *http.Response, requestBody, responseBody string, elapsed time.Duration) string {
	var sb strings.Builder

	sb.WriteString("Request:\n")

	if req != nil {
		fmt.Fprintf(&sb, "%s: %s HTTP/%d.%d\n", req.Method, req.URL, req.ProtoMajor, req.ProtoMinor)
		writeHeaders(&sb, req.Header)
	}

	sb.WriteString("\n")
	sb.WriteString(requestBody)
	sb.WriteString("\n\n\n")
	sb.WriteString("Response:\n")

	if resp != nil {
		fmt.Fprintf(&sb, "HTTP/%d.%d %s\n", resp.ProtoMajor, resp.ProtoMinor, resp.Status)
		writeHeaders(&sb, resp.Header)
	}

	sb.WriteString("\n")
	sb.WriteString(responseBody)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Elapsed time: %s\n", elapsed)

	return sb.String()
}

// DumpObject renders an SDK response as indented JSON.
func DumpObject(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", value)
	}

	return string(data)
}

func writeHeaders(sb *strings.Builder, header http.Header) {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		value := strings.Join(header.Values(name), ", ")
		if slices.Contains(redactedHeaders, http.CanonicalHeaderKey(name)) {
			value = "***"
		}

		fmt.Fprintf(sb, "%s: %s\n", name, value)
	}
}
