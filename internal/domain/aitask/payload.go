package aitask

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ClinicalAssessmentInput is the payload for a clinical_assessment task.
type ClinicalAssessmentInput struct {
	Patient     PatientContext    `json:"patient"`
	Symptoms    []string          `json:"symptoms,omitempty"`
	Vitals      map[string]string `json:"vitals,omitempty"`
	History     []string          `json:"history,omitempty"`
	Medications []string          `json:"medications,omitempty"`
	LabResults  []LabResult       `json:"labResults,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

// PatientContext is the demographic context attached to assessment inputs.
type PatientContext struct {
	Age    int    `json:"age,omitempty"`
	Sex    string `json:"sex,omitempty"`
	Weight string `json:"weight,omitempty"`
}

// LabResult is a single laboratory value in an assessment input.
type LabResult struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
	Flag  string `json:"flag,omitempty"`
}

// DrugInteractionInput is the payload for a drug_interaction task. A check
// can cover an existing medication list, or a proposed addition via
// NewMedication against the current list.
type DrugInteractionInput struct {
	Medications   []string       `json:"medications"`
	NewMedication string         `json:"newMedication,omitempty"`
	Patient       PatientContext `json:"patient,omitempty"`
	Allergies     []string       `json:"allergies,omitempty"`
	Conditions    []string       `json:"conditions,omitempty"`
}

// AssessmentResult is the structured output of a clinical_assessment task.
type AssessmentResult struct {
	RiskLevel             string           `json:"riskLevel"`
	PrimaryConcerns       []string         `json:"primaryConcerns"`
	Recommendations       []Recommendation `json:"recommendations"`
	DifferentialDiagnosis []Diagnosis      `json:"differentialDiagnosis"`
	Alerts                []Alert          `json:"alerts"`
}

type Recommendation struct {
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

type Diagnosis struct {
	Condition         string   `json:"condition"`
	Probability       string   `json:"probability"`
	SupportingFactors []string `json:"supportingFactors"`
	AdditionalTests   []string `json:"additionalTests,omitempty"`
}

type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// DrugInteractionResult is the structured output of a drug_interaction task.
type DrugInteractionResult struct {
	Interactions    []Interaction `json:"interactions"`
	OverallRisk     string        `json:"overallRisk"`
	Recommendations []string      `json:"recommendations"`
}

type Interaction struct {
	Drug1          string   `json:"drug1"`
	Drug2          string   `json:"drug2"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
	ClinicalEffect string   `json:"clinicalEffect"`
	Management     string   `json:"management"`
	Alternatives   []string `json:"alternatives,omitempty"`
}

var validRiskLevels = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

// ValidateInput checks that raw is a well-formed payload for taskType.
// Unknown task types are rejected before this is called, so taskType is
// assumed valid here.
func ValidateInput(taskType string, raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("input is required")
	}
	switch taskType {
	case TypeClinicalAssessment:
		var in ClinicalAssessmentInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("invalid clinical_assessment input: %w", err)
		}
		if len(in.Symptoms) == 0 && strings.TrimSpace(in.Notes) == "" {
			return fmt.Errorf("clinical_assessment requires symptoms or notes")
		}
	case TypeDrugInteraction:
		var in DrugInteractionInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("invalid drug_interaction input: %w", err)
		}
		drugs := len(in.Medications)
		if strings.TrimSpace(in.NewMedication) != "" {
			drugs++
		}
		if drugs < 2 {
			return fmt.Errorf("drug_interaction requires at least two medications, counting newMedication")
		}
	default:
		return fmt.Errorf("unsupported task type: %s", taskType)
	}
	return nil
}

// ValidateResult checks that raw conforms to the expected output shape for
// taskType. Non-conforming generation output is a task failure, never a
// COMPLETED result.
func ValidateResult(taskType string, raw json.RawMessage) error {
	switch taskType {
	case TypeClinicalAssessment:
		var out AssessmentResult
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("malformed assessment result: %w", err)
		}
		if !validRiskLevels[out.RiskLevel] {
			return fmt.Errorf("assessment result has invalid riskLevel %q", out.RiskLevel)
		}
	case TypeDrugInteraction:
		var out DrugInteractionResult
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("malformed drug interaction result: %w", err)
		}
		if strings.TrimSpace(out.OverallRisk) == "" {
			return fmt.Errorf("drug interaction result missing overallRisk")
		}
	default:
		return fmt.Errorf("unsupported task type: %s", taskType)
	}
	return nil
}
