package models

import "testing"

func TestSearchQuery_Validate(t *testing.T) {
	q := &SearchQuery{Query: "x", Limit: 500}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.Limit != MaxLimit {
		t.Errorf("Limit = %d, want %d", q.Limit, MaxLimit)
	}

	if err := (&SearchQuery{Query: "x", Limit: -1}).Validate(); err == nil {
		t.Error("negative limit should fail")
	}
	bad := 1.5
	if err := (&SearchQuery{Query: "x", MinScore: &bad}).Validate(); err == nil {
		t.Error("min_score above 1 should fail")
	}
	zero := 0.0
	if err := (&SearchQuery{Query: "x", MinScore: &zero}).Validate(); err != nil {
		t.Errorf("min_score 0 is valid: %v", err)
	}
}
