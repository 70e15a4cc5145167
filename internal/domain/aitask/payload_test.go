package aitask

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateInput_ClinicalAssessment(t *testing.T) {
	cases := map[string]struct {
		input   string
		wantErr bool
	}{
		"symptoms present":   {assessmentInput, false},
		"notes only":         {`{"patient":{"age":30},"notes":"persistent cough"}`, false},
		"empty object":       {`{}`, true},
		"malformed json":     {`{"symptoms":`, true},
		"wrong symptom type": {`{"symptoms":"fever"}`, true},
	}
	for name, tc := range cases {
		err := ValidateInput(TypeClinicalAssessment, json.RawMessage(tc.input))
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: got err %v, wantErr %v", name, err, tc.wantErr)
		}
	}
}

func TestValidateInput_DrugInteraction(t *testing.T) {
	cases := map[string]struct {
		input   string
		wantErr bool
	}{
		"two medications":             {interactionInput, false},
		"one medication":              {`{"medications":["warfarin"]}`, true},
		"no medications":              {`{}`, true},
		"many medications":            {`{"medications":["a","b","c","d"]}`, false},
		"one existing plus new":       {`{"medications":["Warfarin"],"newMedication":"Aspirin"}`, false},
		"new medication only":         {`{"newMedication":"Aspirin"}`, true},
		"blank new medication":        {`{"medications":["warfarin"],"newMedication":"  "}`, true},
		"new medication against list": {`{"medications":["warfarin","metformin"],"newMedication":"aspirin"}`, false},
	}
	for name, tc := range cases {
		err := ValidateInput(TypeDrugInteraction, json.RawMessage(tc.input))
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: got err %v, wantErr %v", name, err, tc.wantErr)
		}
	}
}

func TestValidateInput_Empty(t *testing.T) {
	if err := ValidateInput(TypeClinicalAssessment, nil); err == nil {
		t.Error("expected error for nil input")
	}
}

func TestValidateResult_Assessment(t *testing.T) {
	if err := ValidateResult(TypeClinicalAssessment, json.RawMessage(validAssessmentOutput)); err != nil {
		t.Errorf("valid output rejected: %v", err)
	}
	if err := ValidateResult(TypeClinicalAssessment, json.RawMessage(`{"riskLevel":"catastrophic"}`)); err == nil {
		t.Error("expected error for invalid riskLevel")
	}
	if err := ValidateResult(TypeClinicalAssessment, json.RawMessage(`not json`)); err == nil {
		t.Error("expected error for malformed output")
	}
}

func TestValidateResult_Interaction(t *testing.T) {
	if err := ValidateResult(TypeDrugInteraction, json.RawMessage(validInteractionOutput)); err != nil {
		t.Errorf("valid output rejected: %v", err)
	}
	if err := ValidateResult(TypeDrugInteraction, json.RawMessage(`{"interactions":[]}`)); err == nil {
		t.Error("expected error for missing overallRisk")
	}
}

func TestValidType(t *testing.T) {
	if !ValidType(TypeClinicalAssessment) || !ValidType(TypeDrugInteraction) {
		t.Error("known types should be valid")
	}
	if ValidType("diagnostic_assistance") {
		t.Error("streaming-only type must not be a background task type")
	}
	if ValidType("") {
		t.Error("empty type must be invalid")
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(StatusPending) || IsTerminal(StatusInProgress) {
		t.Error("PENDING and IN_PROGRESS are not terminal")
	}
	if !IsTerminal(StatusCompleted) || !IsTerminal(StatusFailed) {
		t.Error("COMPLETED and FAILED are terminal")
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	tk := &Task{Type: TypeClinicalAssessment, Input: json.RawMessage(assessmentInput)}
	p1, err := BuildPrompt(tk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, _ := BuildPrompt(tk)
	if p1 != p2 {
		t.Error("prompt must be deterministic for identical tasks")
	}
	if !strings.Contains(p1, "fever") {
		t.Error("prompt should embed the input payload")
	}
	if !strings.Contains(p1, "riskLevel") {
		t.Error("prompt should describe the expected output shape")
	}
}

func TestBuildPrompt_UnknownType(t *testing.T) {
	tk := &Task{Type: "summarize_chart"}
	if _, err := BuildPrompt(tk); err == nil {
		t.Error("expected error for unknown type")
	}
}
