package json

import (
	"strings"
	"testing"
)

type pickResult struct {
	FinalOutfitID string `json:"final_outfit_id"`
	Reason        string `json:"reason"`
}

func TestExtractPureJSON(t *testing.T) {
	response := `{"final_outfit_id": "O1", "reason": "cohesive palette"}`
	result, err := Extract[pickResult](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalOutfitID != "O1" {
		t.Errorf("expected O1, got %q", result.FinalOutfitID)
	}
}

func TestExtractCodeFenced(t *testing.T) {
	response := "```json\n{\"final_outfit_id\": \"O2\", \"reason\": \"matches theme\"}\n```"
	result, err := Extract[pickResult](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalOutfitID != "O2" {
		t.Errorf("expected O2, got %q", result.FinalOutfitID)
	}
}

func TestExtractEmbeddedInProse(t *testing.T) {
	response := `Sure! Here is my pick: {"final_outfit_id": "O1", "reason": "best renders"} Hope that helps.`
	result, err := Extract[pickResult](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reason != "best renders" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestExtractNoJSON(t *testing.T) {
	_, err := Extract[pickResult]("I could not decide on an outfit.")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failed to extract valid JSON") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtractTruncatesPreview(t *testing.T) {
	_, err := Extract[pickResult](strings.Repeat("garbage ", 50))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "...") {
		t.Errorf("expected truncated preview in error, got %v", err)
	}
}

func TestDecodeWellFormed(t *testing.T) {
	result, ok := Decode[pickResult](`{"final_outfit_id": "O1", "reason": "r"}`)
	if !ok {
		t.Fatal("expected ok for well-formed response")
	}
	if result.FinalOutfitID != "O1" {
		t.Errorf("expected O1, got %q", result.FinalOutfitID)
	}
}

func TestDecodeMalformedReportsFalse(t *testing.T) {
	if _, ok := Decode[pickResult]("definitely not json"); ok {
		t.Error("expected ok=false for malformed response")
	}
	if _, ok := Decode[pickResult](`{"final_outfit_id": 42}`); ok {
		t.Error("expected ok=false for type mismatch")
	}
}
