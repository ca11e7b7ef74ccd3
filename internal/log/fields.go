// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	FieldRequestID = "request_id"
	FieldEvent     = "event"
	FieldComponent = "component"

	// Extraction fields
	FieldPlatform    = "platform"
	FieldContentType = "content_type"
	FieldTier        = "tier"
	FieldCode        = "code"

	// Delivery fields
	FieldHash     = "hash"
	FieldUpstream = "upstream"
	FieldStatus   = "status"
	FieldBytes    = "bytes"
)
