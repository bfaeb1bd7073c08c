package probes

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

const networkProbeTimeout = 5 * time.Second

func dnsResolution(ctx context.Context, inv probe.Invocation) probe.Result {
	hostname := asString(inv.Args["hostname"])
	ctx, cancel := context.WithTimeout(ctx, networkProbeTimeout)
	defer cancel()

	start := time.Now()
	addrs, err := net.DefaultResolver.LookupHost(ctx, hostname)
	elapsed := time.Since(start)
	if err != nil {
		// Resolution failure is a finding, not a probe failure.
		return probe.Ok("dns_resolution", map[string]interface{}{
			"hostname":   hostname,
			"resolved":   false,
			"error":      err.Error(),
			"latency_ms": elapsed.Milliseconds(),
		})
	}
	return probe.Ok("dns_resolution", map[string]interface{}{
		"hostname":   hostname,
		"resolved":   true,
		"addresses":  addrs,
		"latency_ms": elapsed.Milliseconds(),
	})
}

func tcpConnection(_ context.Context, inv probe.Invocation) probe.Result {
	host := asString(inv.Args["host"])
	port := asInt(inv.Args["port"], 0)
	if port <= 0 || port > 65535 {
		return probe.Fail("tcp_connection", fmt.Sprintf("invalid port %v", inv.Args["port"]))
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, networkProbeTimeout)
	elapsed := time.Since(start)
	if err != nil {
		return probe.Ok("tcp_connection", map[string]interface{}{
			"address":    addr,
			"reachable":  false,
			"error":      err.Error(),
			"latency_ms": elapsed.Milliseconds(),
		})
	}
	conn.Close()
	return probe.Ok("tcp_connection", map[string]interface{}{
		"address":    addr,
		"reachable":  true,
		"latency_ms": elapsed.Milliseconds(),
	})
}

const maxHTTPBodyBytes = 1024

func httpConnection(ctx context.Context, inv probe.Invocation) probe.Result {
	url := asString(inv.Args["url"])
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return probe.Fail("http_connection", err.Error())
	}

	client := &http.Client{Timeout: networkProbeTimeout}
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return probe.Ok("http_connection", map[string]interface{}{
			"url":        url,
			"reachable":  false,
			"error":      err.Error(),
			"latency_ms": elapsed.Milliseconds(),
		})
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBodyBytes))
	return probe.Ok("http_connection", map[string]interface{}{
		"url":          url,
		"reachable":    true,
		"status":       resp.StatusCode,
		"latency_ms":   elapsed.Milliseconds(),
		"body_snippet": string(body),
	})
}
