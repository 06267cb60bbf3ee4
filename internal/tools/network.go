package tools

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/marcosnunesmbs/smith/internal/guard"
)

const defaultHTTPTimeout = 30 * time.Second

// NewNetworkTools builds the network category: http_request, ping (TCP
// connect), port_check, dns_lookup, download_file. http_request and
// download_file are built on resty, enriching the existing stack with a
// higher-level HTTP client than bare net/http gives (retry/timeout
// configuration, a fluent request builder) the way the pack's browser
// automation repos use it for their outbound HTTP calls.
func NewNetworkTools(sandbox *Sandbox) []Tool {
	return []Tool{
		{
			Name:        "http_request",
			Category:    CategoryNetwork,
			Description: "Perform an HTTP request and return status, headers, and body.",
			Args: []ArgDescriptor{
				{Name: "url", Type: ArgString, Required: true},
				{Name: "method", Type: ArgString, Default: "GET"},
				{Name: "headers", Type: ArgObject},
				{Name: "body", Type: ArgString},
				{Name: "timeout_ms", Type: ArgInt},
			},
			Handler: httpRequestHandler,
		},
		{
			Name:        "ping",
			Category:    CategoryNetwork,
			Description: "Check TCP reachability of a host on a port (default 80).",
			Args: []ArgDescriptor{
				{Name: "host", Type: ArgString, Required: true},
				{Name: "port", Type: ArgInt, Default: 80},
				{Name: "timeout_ms", Type: ArgInt, Default: 5000},
			},
			Handler: pingHandler,
		},
		{
			Name:        "port_check",
			Category:    CategoryNetwork,
			Description: "Check whether a specific host:port is accepting TCP connections.",
			Args: []ArgDescriptor{
				{Name: "host", Type: ArgString, Required: true},
				{Name: "port", Type: ArgInt, Required: true},
				{Name: "timeout_ms", Type: ArgInt, Default: 5000},
			},
			Handler: portCheckHandler,
		},
		{
			Name:        "dns_lookup",
			Category:    CategoryNetwork,
			Description: "Resolve a hostname to its IP addresses.",
			Args:        []ArgDescriptor{{Name: "host", Type: ArgString, Required: true}},
			Handler:     dnsLookupHandler,
		},
		{
			Name:        "download_file",
			Category:    CategoryNetwork,
			Description: "Download a URL to a destination path within the sandbox.",
			Args: []ArgDescriptor{
				{Name: "url", Type: ArgString, Required: true},
				{Name: "destination", Type: ArgString, Required: true},
			},
			Handler: downloadFileHandler,
		},
	}
}

func httpRequestHandler(ctx Context, args map[string]any) (Result, error) {
	url, err := extractString(args, "url", true)
	if err != nil {
		return resultFor(err), nil
	}
	method, err := extractStringDefault(args, "method", "GET")
	if err != nil {
		return resultFor(err), nil
	}
	body, err := extractString(args, "body", false)
	if err != nil {
		return resultFor(err), nil
	}
	timeoutMs, err := extractInt(args, "timeout_ms", false, 0)
	if err != nil {
		return resultFor(err), nil
	}

	timeout := defaultHTTPTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}

	client := resty.New().SetTimeout(timeout)
	req := client.R().SetContext(ctx.Context)

	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.SetHeader(k, s)
			}
		}
	}
	if body != "" {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("request failed: %s", err)}, nil
	}

	return Result{Success: true, Data: map[string]any{
		"status_code": resp.StatusCode(),
		"headers":     flattenHeaders(resp.Header()),
		"body":        guard.TruncateOutput(string(resp.Body()), guard.DefaultOutputCap),
	}}, nil
}

func flattenHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func pingHandler(ctx Context, args map[string]any) (Result, error) {
	host, err := extractString(args, "host", true)
	if err != nil {
		return resultFor(err), nil
	}
	port, err := extractInt(args, "port", false, 80)
	if err != nil {
		return resultFor(err), nil
	}
	timeoutMs, err := extractInt(args, "timeout_ms", false, 5000)
	if err != nil {
		return resultFor(err), nil
	}
	return tcpCheck(host, port, timeoutMs), nil
}

func portCheckHandler(ctx Context, args map[string]any) (Result, error) {
	host, err := extractString(args, "host", true)
	if err != nil {
		return resultFor(err), nil
	}
	port, err := extractInt(args, "port", true, 0)
	if err != nil {
		return resultFor(err), nil
	}
	timeoutMs, err := extractInt(args, "timeout_ms", false, 5000)
	if err != nil {
		return resultFor(err), nil
	}
	return tcpCheck(host, port, timeoutMs), nil
}

func tcpCheck(host string, port, timeoutMs int) Result {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return Result{Success: true, Data: map[string]any{"reachable": false, "error": err.Error()}}
	}
	conn.Close()
	return Result{Success: true, Data: map[string]any{"reachable": true}}
}

func dnsLookupHandler(ctx Context, args map[string]any) (Result, error) {
	host, err := extractString(args, "host", true)
	if err != nil {
		return resultFor(err), nil
	}
	ips, err := net.DefaultResolver.LookupHost(ctx.Context, host)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("dns lookup failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"addresses": ips}}, nil
}

func downloadFileHandler(ctx Context, args map[string]any) (Result, error) {
	url, err := extractString(args, "url", true)
	if err != nil {
		return resultFor(err), nil
	}
	destination, err := extractString(args, "destination", true)
	if err != nil {
		return resultFor(err), nil
	}

	resolvedDest, err := guardPath(ctx, destination, true)
	if err != nil {
		return resultFor(err), nil
	}

	client := resty.New().SetTimeout(defaultHTTPTimeout)
	resp, err := client.R().SetContext(ctx.Context).SetOutput(resolvedDest).Get(url)
	if err != nil {
		os.Remove(resolvedDest)
		return Result{Success: false, Error: fmt.Sprintf("download failed: %s", err)}, nil
	}
	if resp.IsError() {
		os.Remove(resolvedDest)
		return Result{Success: false, Error: fmt.Sprintf("download failed: status %d", resp.StatusCode())}, nil
	}

	return Result{Success: true, Data: map[string]any{
		"destination": destination,
		"status_code": resp.StatusCode(),
	}}, nil
}
