// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

// API versions, newest first. Quill uses date-based versioning; the
// version is sent via the Quill-Version header on each request.
const (
	// Version20260602 is the current stable API version.
	Version20260602 = "2026-06-02"

	// Version20260214 predates token usage reporting on version records.
	Version20260214 = "2026-02-14"

	// LatestVersion is the most recent API version.
	LatestVersion = Version20260602
)
