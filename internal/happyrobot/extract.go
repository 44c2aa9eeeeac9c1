package happyrobot

import (
	"sort"
	"strings"
)

// The platform is loose about response and callback shapes: the same field
// shows up under several names depending on workflow version. Each exported
// extractor below encodes one field's known shapes as an ordered
// first-present-wins list, so the ambiguity stays out of business logic.

// FirstString walks the dotted paths in order and returns the first
// non-empty string value found.
func FirstString(doc map[string]any, paths ...string) string {
	for _, p := range paths {
		if s, ok := lookupString(doc, p); ok {
			return s
		}
	}
	return ""
}

func lookupString(doc map[string]any, path string) (string, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[part]
		if !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// ExtractRunID pulls the run identifier from a trigger response or callback
// body. Preference: queued_run_ids[0], run_id, runId, id.
func ExtractRunID(doc map[string]any) string {
	if ids, ok := doc["queued_run_ids"].([]any); ok && len(ids) > 0 {
		if s, ok := ids[0].(string); ok && s != "" {
			return s
		}
	}
	return FirstString(doc, "run_id", "runId", "id")
}

// ExtractCallID pulls the echoed internal record id from a callback body.
// The context.source.call_id shape is what we send at trigger time.
func ExtractCallID(doc map[string]any) string {
	return FirstString(doc, "context.source.call_id", "call_id", "callId", "metadata.callId")
}

// ExtractStatus pulls the platform-native status string from a callback
// body, if present.
func ExtractStatus(doc map[string]any) string {
	return FirstString(doc, "status")
}

// ExtractSummary pulls the workflow's call summary.
func ExtractSummary(doc map[string]any) string {
	return FirstString(doc, "result.summary", "summary", "outputs.summary", "extracted.summary")
}

// ExtractContractDraft pulls the workflow's contract draft.
func ExtractContractDraft(doc map[string]any) string {
	return FirstString(doc, "result.contract_draft", "result.contractDraft", "contract_draft", "contractDraft", "outputs.contract_draft")
}

const phoneKeySuffix = ".data.phone_number"

// PhoneFromRunData scans a run's flat data payload for a phone number. The
// platform stores it under a dynamically named key like
// "<uuid>.data.phone_number", so this is a suffix match over the keys.
// Keys are visited in sorted order so the result is deterministic when
// multiple phone-bearing keys exist.
func PhoneFromRunData(data map[string]any) (string, bool) {
	if data == nil {
		return "", false
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k != "phone_number" && !strings.HasSuffix(k, phoneKeySuffix) {
			continue
		}
		if s, ok := data[k].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}
