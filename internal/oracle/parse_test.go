package oracle

import "testing"

func TestDecodeFirst(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"bare object", `{"isRelevant":true,"relevanceScore":82,"category":"residential","reason":"listing"}`, 82, false},
		{"array", `[{"isRelevant":true,"relevanceScore":64,"category":"rental","reason":"rent"}]`, 64, false},
		{"fenced", "```json\n{\"isRelevant\":false,\"relevanceScore\":5,\"category\":\"not_relevant\",\"reason\":\"food\"}\n```", 5, false},
		{"prose", `Here you go: {"isRelevant":true,"relevanceScore":70,"category":"commercial","reason":"office"} thanks`, 70, false},
		{"empty array", `[]`, 0, true},
		{"no json", `I cannot help with that`, 0, true},
		{"broken", `{"isRelevant":true,`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeFirst[Assessment](tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.RelevanceScore != tt.want {
				t.Errorf("expected score %v, got %v", tt.want, got.RelevanceScore)
			}
		})
	}
}

func TestParseAssessmentNormalizes(t *testing.T) {
	a, err := parseAssessment("text", `{"isRelevant":true,"relevanceScore":140,"category":"castles","reason":"x"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RelevanceScore != 100 {
		t.Errorf("expected score clamped to 100, got %v", a.RelevanceScore)
	}
	if a.Category != CategoryOther {
		t.Errorf("expected unknown category to map to other, got %s", a.Category)
	}
}

func TestParseAssessmentMalformed(t *testing.T) {
	_, err := parseAssessment("text", "nope")
	if KindOf(err) != KindMalformed {
		t.Errorf("expected malformed kind, got %v", KindOf(err))
	}
}

func TestDecodeFirstComment(t *testing.T) {
	d, err := decodeFirst[CommentDraft](`[{"comment":"Lovely light in that kitchen.","viralRate":40,"commentTokenCount":9}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Comment != "Lovely light in that kitchen." || d.CommentTokenCount != 9 {
		t.Errorf("unexpected draft %+v", d)
	}
}
