package happyrobot

import "testing"

func TestExtractRunID_Preference(t *testing.T) {
	cases := []struct {
		name string
		doc  map[string]any
		want string
	}{
		{"queued run ids win", map[string]any{
			"queued_run_ids": []any{"run_q"},
			"run_id":         "run_snake",
			"id":             "run_plain",
		}, "run_q"},
		{"empty queued list falls through", map[string]any{
			"queued_run_ids": []any{},
			"run_id":         "run_snake",
		}, "run_snake"},
		{"snake case over camel", map[string]any{
			"run_id": "run_snake",
			"runId":  "run_camel",
		}, "run_snake"},
		{"camel over bare id", map[string]any{
			"runId": "run_camel",
			"id":    "run_plain",
		}, "run_camel"},
		{"bare id last", map[string]any{"id": "run_plain"}, "run_plain"},
		{"nothing recognizable", map[string]any{"ok": true}, ""},
		{"non-string queued entry skipped", map[string]any{
			"queued_run_ids": []any{42},
			"run_id":         "run_snake",
		}, "run_snake"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractRunID(tc.doc); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestExtractCallID_Preference(t *testing.T) {
	doc := map[string]any{
		"context":  map[string]any{"source": map[string]any{"call_id": "ctx-id"}},
		"call_id":  "flat-id",
		"metadata": map[string]any{"callId": "meta-id"},
	}
	if got := ExtractCallID(doc); got != "ctx-id" {
		t.Fatalf("context shape must win, got %q", got)
	}
	delete(doc, "context")
	if got := ExtractCallID(doc); got != "flat-id" {
		t.Fatalf("flat call_id next, got %q", got)
	}
	delete(doc, "call_id")
	if got := ExtractCallID(doc); got != "meta-id" {
		t.Fatalf("metadata.callId last, got %q", got)
	}
}

func TestExtractSummaryAndContractDraft(t *testing.T) {
	doc := map[string]any{
		"result": map[string]any{
			"summary":        "nested summary",
			"contract_draft": "nested draft",
		},
		"summary":        "flat summary",
		"contract_draft": "flat draft",
	}
	if got := ExtractSummary(doc); got != "nested summary" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractContractDraft(doc); got != "nested draft" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractSummary(map[string]any{"summary": "flat"}); got != "flat" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractContractDraft(map[string]any{}); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestFirstString_BlanksAndWrongTypes(t *testing.T) {
	doc := map[string]any{
		"a": "   ",
		"b": 7,
		"c": "value",
	}
	if got := FirstString(doc, "a", "b", "c"); got != "value" {
		t.Fatalf("blank and non-string values must be skipped, got %q", got)
	}
}

func TestPhoneFromRunData(t *testing.T) {
	phone, ok := PhoneFromRunData(map[string]any{
		"f9c1b2.data.phone_number": "+34612345678",
		"f9c1b2.data.name":         "Jane",
	})
	if !ok || phone != "+34612345678" {
		t.Fatalf("suffix key not found: %q %v", phone, ok)
	}

	phone, ok = PhoneFromRunData(map[string]any{"phone_number": "+34612345678"})
	if !ok || phone != "+34612345678" {
		t.Fatalf("exact key not found: %q %v", phone, ok)
	}

	// Sorted key order keeps the result stable across map iteration.
	phone, _ = PhoneFromRunData(map[string]any{
		"bbb.data.phone_number": "+34600000002",
		"aaa.data.phone_number": "+34600000001",
	})
	if phone != "+34600000001" {
		t.Fatalf("expected lexicographically first key, got %q", phone)
	}

	if _, ok := PhoneFromRunData(map[string]any{"phone": "+34612345678"}); ok {
		t.Fatalf("unrelated keys must not match")
	}
	if _, ok := PhoneFromRunData(nil); ok {
		t.Fatalf("nil data must not match")
	}
}
