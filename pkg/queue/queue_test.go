package queue

import (
	"encoding/json"
	"testing"
)

type testPayload struct {
	Date   string `json:"date"`
	Ticker string `json:"ticker"`
}

func TestParsePayloadRawMessage(t *testing.T) {
	raw := json.RawMessage(`{"date":"2024-03-15","ticker":"SPY"}`)
	p, err := ParsePayload[testPayload](raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Date != "2024-03-15" || p.Ticker != "SPY" {
		t.Fatalf("got %+v", p)
	}
}

func TestParsePayloadMap(t *testing.T) {
	p, err := ParsePayload[testPayload](map[string]string{"date": "2024-03-15"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Date != "2024-03-15" || p.Ticker != "" {
		t.Fatalf("got %+v", p)
	}
}

func TestParsePayloadTypedValue(t *testing.T) {
	in := testPayload{Date: "2024-03-15"}
	p, err := ParsePayload[testPayload](in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *p != in {
		t.Fatalf("got %+v, want %+v", *p, in)
	}

	p2, err := ParsePayload[testPayload](&in)
	if err != nil {
		t.Fatalf("parse pointer: %v", err)
	}
	if p2 != &in {
		t.Fatal("pointer payload must pass through")
	}
}

func TestParsePayloadBadJSON(t *testing.T) {
	if _, err := ParsePayload[testPayload](json.RawMessage(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}
