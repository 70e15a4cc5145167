// Package assist implements the synchronous AI surfaces: streamed diagnostic
// assistance and SOAP note drafting, plus blocking documentation helpers.
// Unlike aitask, nothing here is persisted; each request lives and dies with
// its HTTP connection.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ehr/clinical-ai/internal/platform/genai"
)

// ErrInvalidRequest marks errors caused by the caller's payload rather than
// the generation capability.
var ErrInvalidRequest = errors.New("invalid request")

// Streaming assistance types.
const (
	TypeDiagnosticAssistance = "diagnostic_assistance"
	TypeGenerateSOAPNote     = "generate_soap_note"
)

// Blocking documentation types.
const (
	TypeTranscribeVoice    = "transcribe_voice"
	TypeExtractMedicalInfo = "extract_medical_info"
)

// DiagnosticInput is the payload for a diagnostic_assistance request.
type DiagnosticInput struct {
	Query    string   `json:"query"`
	Symptoms []string `json:"symptoms,omitempty"`
	Context  string   `json:"context,omitempty"`
}

// SOAPNoteInput is the payload for a generate_soap_note request.
type SOAPNoteInput struct {
	EncounterNotes string `json:"encounterNotes"`
	PatientContext string `json:"patientContext,omitempty"`
}

// TranscribeInput is the payload for a transcribe_voice request.
type TranscribeInput struct {
	AudioTranscript string `json:"audioTranscript"`
	Context         string `json:"context,omitempty"`
}

// ExtractInput is the payload for an extract_medical_info request.
// ExtractionType narrows the extraction to one category, for example
// "medications"; empty means extract everything.
type ExtractInput struct {
	DocumentText   string `json:"documentText"`
	ExtractionType string `json:"extractionType,omitempty"`
}

// TranscribeResult is the response body for transcribe_voice.
type TranscribeResult struct {
	TranscribedNote string `json:"transcribedNote"`
}

// ExtractResult is the response body for extract_medical_info.
type ExtractResult struct {
	ExtractedInfo string `json:"extractedInfo"`
}

type Service struct {
	gen genai.Generator
}

func NewService(gen genai.Generator) *Service {
	return &Service{gen: gen}
}

// Stream runs a streaming assistance request, relaying each text delta to
// emit in order. Validation errors are returned before any delta is emitted.
func (s *Service) Stream(ctx context.Context, assistType string, input json.RawMessage, emit func(delta string) error) error {
	prompt, err := buildStreamPrompt(assistType, input)
	if err != nil {
		return err
	}
	return s.gen.StreamText(ctx, prompt, emit)
}

// Transcribe cleans up a raw dictation transcript into a formatted clinical
// note.
func (s *Service) Transcribe(ctx context.Context, input json.RawMessage) (*TranscribeResult, error) {
	var in TranscribeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid transcribe_voice input: %v", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(in.AudioTranscript) == "" {
		return nil, fmt.Errorf("%w: transcribe_voice requires audioTranscript", ErrInvalidRequest)
	}

	raw, err := s.gen.GenerateObject(ctx, transcribePrompt(in))
	if err != nil {
		return nil, err
	}
	var out TranscribeResult
	if err := json.Unmarshal(raw, &out); err != nil || out.TranscribedNote == "" {
		return nil, fmt.Errorf("generation returned unusable transcription")
	}
	return &out, nil
}

// Extract pulls structured medical facts out of a free-text note.
func (s *Service) Extract(ctx context.Context, input json.RawMessage) (*ExtractResult, error) {
	var in ExtractInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid extract_medical_info input: %v", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(in.DocumentText) == "" {
		return nil, fmt.Errorf("%w: extract_medical_info requires documentText", ErrInvalidRequest)
	}

	raw, err := s.gen.GenerateObject(ctx, extractPrompt(in))
	if err != nil {
		return nil, err
	}
	var out ExtractResult
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.ExtractedInfo) == "" {
		return nil, fmt.Errorf("generation returned unusable extraction")
	}
	return &out, nil
}

func buildStreamPrompt(assistType string, input json.RawMessage) (string, error) {
	switch assistType {
	case TypeDiagnosticAssistance:
		var in DiagnosticInput
		if err := json.Unmarshal(input, &in); err != nil {
			return "", fmt.Errorf("%w: invalid diagnostic_assistance input: %v", ErrInvalidRequest, err)
		}
		if strings.TrimSpace(in.Query) == "" && len(in.Symptoms) == 0 {
			return "", fmt.Errorf("%w: diagnostic_assistance requires a query or symptoms", ErrInvalidRequest)
		}
		return diagnosticPrompt(in), nil
	case TypeGenerateSOAPNote:
		var in SOAPNoteInput
		if err := json.Unmarshal(input, &in); err != nil {
			return "", fmt.Errorf("%w: invalid generate_soap_note input: %v", ErrInvalidRequest, err)
		}
		if strings.TrimSpace(in.EncounterNotes) == "" {
			return "", fmt.Errorf("%w: generate_soap_note requires encounterNotes", ErrInvalidRequest)
		}
		return soapNotePrompt(in), nil
	}
	return "", fmt.Errorf("%w: invalid assist type: %s", ErrInvalidRequest, assistType)
}
