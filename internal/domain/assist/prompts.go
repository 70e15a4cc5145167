package assist

import (
	"fmt"
	"strings"
)

func diagnosticPrompt(in DiagnosticInput) string {
	var b strings.Builder
	b.WriteString(`You are a clinical decision support assistant for licensed healthcare providers.
Provide evidence-based diagnostic guidance. You support, never replace, the
provider's clinical judgment. Be concise and cite the reasoning behind each
suggestion.

`)
	if in.Query != "" {
		fmt.Fprintf(&b, "Provider question: %s\n", in.Query)
	}
	if len(in.Symptoms) > 0 {
		fmt.Fprintf(&b, "Presenting symptoms: %s\n", strings.Join(in.Symptoms, ", "))
	}
	if in.Context != "" {
		fmt.Fprintf(&b, "Clinical context: %s\n", in.Context)
	}
	return b.String()
}

func soapNotePrompt(in SOAPNoteInput) string {
	var b strings.Builder
	b.WriteString(`You are a medical scribe assistant. Draft a SOAP note (Subjective,
Objective, Assessment, Plan) from the encounter notes below. Use standard
clinical terminology and keep each section focused. Do not invent findings
that are not in the notes.

`)
	if in.PatientContext != "" {
		fmt.Fprintf(&b, "Patient context: %s\n\n", in.PatientContext)
	}
	fmt.Fprintf(&b, "Encounter notes:\n%s\n", in.EncounterNotes)
	return b.String()
}

func transcribePrompt(in TranscribeInput) string {
	var b strings.Builder
	b.WriteString(`You are a medical transcription assistant. Clean up the raw dictation
below into a well-formatted clinical note: fix punctuation, expand obvious
medical shorthand, and remove filler words. Preserve all clinical content.

`)
	if in.Context != "" {
		fmt.Fprintf(&b, "Clinical context: %s\n\n", in.Context)
	}
	fmt.Fprintf(&b, "Raw dictation:\n%s\n\n", in.AudioTranscript)
	b.WriteString(`Respond with ONLY a JSON object of the form {"transcribedNote": "string"}, no markdown, no prose.`)
	return b.String()
}

func extractPrompt(in ExtractInput) string {
	var b strings.Builder
	b.WriteString(`You are a clinical information extraction assistant. Extract medical
information from the document below.

`)
	if in.ExtractionType != "" {
		fmt.Fprintf(&b, "Extract only: %s\n\n", in.ExtractionType)
	} else {
		b.WriteString("Extract medications, diagnoses, allergies, procedures, and follow-up instructions.\n\n")
	}
	fmt.Fprintf(&b, "Document:\n%s\n\n", in.DocumentText)
	b.WriteString(`Respond with ONLY a JSON object of the form {"extractedInfo": "string"}, no markdown, no prose.`)
	return b.String()
}
