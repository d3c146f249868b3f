// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package hooks

// Canonical event names. The taxonomy is a closed set at the core; modules
// may emit additional events but the names below are reserved. Each name is
// ns:action[:detail], lowercase.
const (
	EventSessionStart  = "session:start"
	EventSessionEnd    = "session:end"
	EventSessionStatus = "session:status"

	EventPromptSubmit   = "prompt:submit"
	EventPromptComplete = "prompt:complete"

	EventPlanStart = "plan:start"
	EventPlanEnd   = "plan:end"

	EventProviderRequest            = "provider:request"
	EventProviderResponse           = "provider:response"
	EventProviderError              = "provider:error"
	EventProviderRetry              = "provider:retry"
	EventProviderToolSequenceRepair = "provider:tool_sequence_repaired"

	EventContentBlockStart = "content_block:start"
	EventContentBlockDelta = "content_block:delta"
	EventContentBlockEnd   = "content_block:end"

	EventToolPre   = "tool:pre"
	EventToolPost  = "tool:post"
	EventToolError = "tool:error"

	EventContextPreCompact  = "context:pre_compact"
	EventContextPostCompact = "context:post_compact"

	EventArtifactWrite = "artifact:write"
	EventArtifactRead  = "artifact:read"

	EventPolicyViolation = "policy:violation"

	EventApprovalRequired = "approval:required"
	EventApprovalGranted  = "approval:granted"
	EventApprovalDenied   = "approval:denied"

	EventOrchestratorTurnComplete = "orchestrator:turn_complete"
)
