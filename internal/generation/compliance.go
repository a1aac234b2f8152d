package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/models"
)

// Verdict is the outcome of a compliance check.
type Verdict string

const (
	VerdictCompliant    Verdict = "CONFORME"
	VerdictNonCompliant Verdict = "NON-CONFORME"
	VerdictError        Verdict = "ERROR"
)

// ComplianceResult is the structured answer to a compliance question.
type ComplianceResult struct {
	Compliance Verdict           `json:"compliance"`
	Reason     string            `json:"reason"`
	Sources    []string          `json:"sources"`
	Citations  []models.Citation `json:"citations,omitempty"`
}

const compliancePolicy = `Tu es un expert en conformité du droit du travail belge.
Analyse la situation décrite dans la question au regard des documents fournis et identifie toute violation.
Applique la hiérarchie Loi > CCT > Protocole et la règle de faveur.`

const complianceFormat = `Réponds UNIQUEMENT avec un objet JSON de la forme :
{"compliance": "CONFORME" ou "NON-CONFORME", "reason": "explication", "sources": ["source1", "source2"]}`

// CheckCompliance asks whether the situation in question complies with the
// retrieved norms. Output that is not the expected JSON yields VerdictError
// with the raw text as reason.
func (s *Service) CheckCompliance(ctx context.Context, question string) (*ComplianceResult, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}
	ret, err := s.retriever.Dispatch(ctx, models.RetrievalQuery{Query: question})
	if err != nil {
		return nil, err
	}

	prompt := ComposePrompt(compliancePolicy, ret.Context, ret.Query) + "\n\n" + complianceFormat
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate compliance verdict: %w", err)
	}

	result := ParseVerdict(text)
	if result.Compliance == VerdictError {
		s.logger.Warn("unparseable compliance verdict", zap.String("query", ret.Query))
	}
	result.Citations = ret.Citations()
	return result, nil
}

// ParseVerdict decodes a model's JSON verdict, tolerating markdown code fences.
func ParseVerdict(text string) *ComplianceResult {
	var out ComplianceResult
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		return &ComplianceResult{Compliance: VerdictError, Reason: text}
	}
	out.Compliance = Verdict(strings.ToUpper(strings.TrimSpace(string(out.Compliance))))
	switch out.Compliance {
	case VerdictCompliant, VerdictNonCompliant:
	default:
		return &ComplianceResult{Compliance: VerdictError, Reason: text}
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	return &out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string, e.g. "json"
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
