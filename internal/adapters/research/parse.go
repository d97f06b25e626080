package research

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/alejandrodnm/evbot/internal/domain"
)

// parse.go — parser del texto de respuesta del colaborador.
//
// La respuesta DEBERÍA ser un bloque JSON con summary/probability/confidence,
// pero los LLMs a veces lo envuelven en prosa o en un code fence. Estrategia:
// buscar el objeto JSON que contiene "summary"; si no aparece o no parsea,
// degradar a extracción por regex con confidence baja. Nunca fallar: un
// resultado con confidence 0.3 lo descartan los mínimos de EV aguas arriba.

const fallbackSummaryLimit = 500

var (
	jsonBlockRe   = regexp.MustCompile(`(?s)\{[^{}]*"summary".*?\}`)
	probabilityRe = regexp.MustCompile(`probability["\s:]+([01]?\.\d+)`)
	confidenceRe  = regexp.MustCompile(`confidence["\s:]+([01]?\.\d+)`)
)

// rawResearch es el JSON que pedimos en el prompt.
type rawResearch struct {
	Summary              string   `json:"summary"`
	EstimatedProbability float64  `json:"estimated_probability"`
	Confidence           float64  `json:"confidence"`
	KeyFactors           []string `json:"key_factors"`
}

// parseResearchText convierte el texto libre del colaborador en un
// ResearchResult tipado. Solo rellena los campos derivados del texto;
// el caller pone market ID, question y sources.
func parseResearchText(text string) domain.ResearchResult {
	if match := jsonBlockRe.FindString(text); match != "" {
		var raw rawResearch
		if err := json.Unmarshal([]byte(match), &raw); err == nil && raw.Summary != "" {
			return domain.ResearchResult{
				Summary:     raw.Summary,
				Probability: clamp01(raw.EstimatedProbability),
				Confidence:  clamp01(raw.Confidence),
				KeyFactors:  raw.KeyFactors,
			}
		}
	}

	// Fallback: rescatar números sueltos del texto. Confidence baja a
	// propósito para que los mínimos filtren el resultado.
	lower := strings.ToLower(text)
	prob := extractFloat(probabilityRe, lower, 0.5)
	conf := extractFloat(confidenceRe, lower, 0.3)

	summary := strings.TrimSpace(text)
	if len(summary) > fallbackSummaryLimit {
		summary = summary[:fallbackSummaryLimit]
	}
	if summary == "" {
		summary = "unable to parse research response"
	}

	return domain.ResearchResult{
		Summary:     summary,
		Probability: clamp01(prob),
		Confidence:  clamp01(conf),
		KeyFactors:  []string{"research result unclear"},
	}
}

func extractFloat(re *regexp.Regexp, text string, fallback float64) float64 {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return fallback
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return f
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
