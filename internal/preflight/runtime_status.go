package preflight

import (
	"context"
	"fmt"
	"strings"

	"reframe/internal/config"
)

// CheckTracingFromConfig evaluates the OTLP endpoint from config and connectivity.
func CheckTracingFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Tracing"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Tracing.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return Result{Name: name, Detail: "Missing endpoint"}
	}
	check := CheckEndpoint(ctx, name, cfg.Tracing.Endpoint)
	return Result{Name: name, Passed: check.Passed, Detail: check.Detail}
}

// CheckPublishFromConfig evaluates the S3 publish settings and, when a custom
// endpoint is set, its connectivity.
func CheckPublishFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Publish"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Publish.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Publish.Bucket) == "" {
		return Result{Name: name, Detail: "Missing bucket"}
	}
	target := fmt.Sprintf("s3://%s/%s", cfg.Publish.Bucket, strings.Trim(cfg.Publish.Prefix, "/"))
	if strings.TrimSpace(cfg.Publish.Endpoint) == "" {
		return Result{Name: name, Passed: true, Detail: target}
	}
	check := CheckEndpoint(ctx, name, cfg.Publish.Endpoint)
	if !check.Passed {
		return Result{Name: name, Detail: check.Detail}
	}
	return Result{Name: name, Passed: true, Detail: target + " via " + check.Detail}
}

// CheckMetricsFromConfig reports the metrics endpoint setting. It does not
// bind the port; the server owns that.
func CheckMetricsFromConfig(cfg *config.Config) Result {
	const name = "Metrics"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Metrics.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Metrics.Bind) == "" {
		return Result{Name: name, Detail: "Missing bind address"}
	}
	return Result{Name: name, Passed: true, Detail: "http://" + cfg.Metrics.Bind + "/metrics"}
}
