package aitask

import (
	"fmt"
)

const assessmentSchema = `{
  "riskLevel": "low|medium|high|critical",
  "primaryConcerns": ["string"],
  "recommendations": [{"category": "string", "priority": "string", "action": "string", "rationale": "string"}],
  "differentialDiagnosis": [{"condition": "string", "probability": "string", "supportingFactors": ["string"], "additionalTests": ["string"]}],
  "alerts": [{"type": "string", "severity": "string", "message": "string", "action": "string"}]
}`

const interactionSchema = `{
  "interactions": [{"drug1": "string", "drug2": "string", "severity": "string", "description": "string", "clinicalEffect": "string", "management": "string", "alternatives": ["string"]}],
  "overallRisk": "string",
  "recommendations": ["string"]
}`

// BuildPrompt produces the generation prompt for a task. The prompt is a pure
// function of the task type and input so that retried tasks send identical
// requests.
func BuildPrompt(t *Task) (string, error) {
	switch t.Type {
	case TypeClinicalAssessment:
		return fmt.Sprintf(`You are a clinical decision support assistant for licensed healthcare providers.
Perform a clinical risk assessment of the patient data below. Consider vital signs,
symptoms, history, current medications, and laboratory results.

Patient data:
%s

Respond with ONLY a JSON object matching this shape, no markdown, no prose:
%s`, string(t.Input), assessmentSchema), nil

	case TypeDrugInteraction:
		return fmt.Sprintf(`You are a clinical pharmacology assistant for licensed healthcare providers.
Analyze the medication data below for drug-drug interactions, taking patient
context, allergies, and conditions into account. When a newMedication is
present, evaluate adding it to the existing medication list.

Medication data:
%s

Respond with ONLY a JSON object matching this shape, no markdown, no prose:
%s`, string(t.Input), interactionSchema), nil
	}
	return "", fmt.Errorf("no prompt for task type %q", t.Type)
}
