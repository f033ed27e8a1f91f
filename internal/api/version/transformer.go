// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package version

import "encoding/json"

// Transformer is a function that transforms response data for a specific
// API version. It receives the current response data and returns the
// transformed data appropriate for the requested version.
//
// Transformers are used to maintain backwards compatibility when making
// breaking changes. For example, if a field is renamed from "State" to
// "Phase", a transformer for the old version would map "Phase" back to
// "State" so old clients continue working.
type Transformer func(data interface{}) interface{}

// transformers maps versions to endpoint-specific transformers.
// Format: version -> endpoint -> transformer function
var transformers = map[string]map[string]Transformer{
	Version20260214: {
		// Token usage was introduced in 2026-06-02; clients pinned to the
		// initial version never saw a usage field on version records.
		"versions.list": stripUsage,
		"versions.get":  stripUsage,
	},
}

// stripUsage removes the usage field from version payloads via a JSON
// round trip, so the shape matches what 2026-02-14 clients were built
// against.
func stripUsage(data interface{}) interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}

	strip := func(m map[string]interface{}) {
		delete(m, "usage")
	}

	var list []map[string]interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, m := range list {
			strip(m)
		}
		return list
	}

	var single map[string]interface{}
	if err := json.Unmarshal(raw, &single); err == nil {
		strip(single)
		return single
	}
	return data
}

// Transform applies version-specific transformations to response data.
// If no transformer exists for the version/endpoint combination, the
// data is returned unchanged.
//
// Parameters:
//   - version: The API version from the request (e.g., "2026-02-14")
//   - endpoint: The endpoint identifier (e.g., "versions.list")
//   - data: The response data to potentially transform
//
// Returns the transformed data.
func Transform(version, endpoint string, data interface{}) interface{} {
	if version == LatestVersion {
		// No transformation needed for latest version
		return data
	}

	versionTransformers, ok := transformers[version]
	if !ok {
		// Unknown version, return data unchanged
		return data
	}

	transformer, ok := versionTransformers[endpoint]
	if !ok {
		// No transformer for this endpoint in this version
		return data
	}

	return transformer(data)
}

// RegisterTransformer adds a transformer for a specific version and endpoint.
// This is typically called during init() to register transformers.
func RegisterTransformer(version, endpoint string, t Transformer) {
	if transformers[version] == nil {
		transformers[version] = make(map[string]Transformer)
	}
	transformers[version][endpoint] = t
}
