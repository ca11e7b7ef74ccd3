// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	ExtractPlatformKey    = "extract.platform"
	ExtractContentTypeKey = "extract.content_type"
	ExtractAccessModeKey  = "extract.access_mode"
	ExtractItemsKey       = "extract.items"
	ExtractCachedKey      = "extract.cached"

	DeliveryModeKey      = "delivery.mode"
	DeliveryContainerKey = "delivery.container"

	MuxModeKey       = "mux.mode"
	MuxDurationKey   = "mux.duration_ms"
	MuxExitStatusKey = "mux.exit_status"

	ErrorKey     = "error"
	ErrorCodeKey = "error.code"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ExtractionAttributes describes one extraction outcome.
func ExtractionAttributes(platform, contentType, accessMode string, items int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if platform != "" {
		attrs = append(attrs, attribute.String(ExtractPlatformKey, platform))
	}
	if contentType != "" {
		attrs = append(attrs, attribute.String(ExtractContentTypeKey, contentType))
	}
	if accessMode != "" {
		attrs = append(attrs, attribute.String(ExtractAccessModeKey, accessMode))
	}
	attrs = append(attrs, attribute.Int(ExtractItemsKey, items))
	return attrs
}

// CachedAttribute marks a span as served from the result cache.
func CachedAttribute(hit bool) attribute.KeyValue {
	return attribute.Bool(ExtractCachedKey, hit)
}

// DeliveryAttributes describes one byte-delivery span.
func DeliveryAttributes(mode, container string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(DeliveryModeKey, mode)}
	if container != "" {
		attrs = append(attrs, attribute.String(DeliveryContainerKey, container))
	}
	return attrs
}

// MuxAttributes describes one muxer run.
func MuxAttributes(mode string, durationMS int64, exitStatus int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MuxModeKey, mode),
		attribute.Int64(MuxDurationKey, durationMS),
		attribute.Int(MuxExitStatusKey, exitStatus),
	}
}

// ErrorAttributes marks a span failed with a gateway error code.
func ErrorAttributes(code string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorCodeKey, code),
	}
}
