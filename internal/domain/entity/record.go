package entity

type Evaluation string

const (
	EvaluationSuccess Evaluation = "SUCCESS"
	EvaluationFailed  Evaluation = "FAILED"
	EvaluationUnknown Evaluation = "UNKNOWN"
)

// ParseEvaluation maps free-form model output onto the three evaluation values.
func ParseEvaluation(s string) Evaluation {
	switch Evaluation(s) {
	case EvaluationSuccess, EvaluationFailed:
		return Evaluation(s)
	default:
		return EvaluationUnknown
	}
}

// StepRecord is one entry of the run artifact log.
type StepRecord struct {
	RunID               string `json:"run_id"`
	TurnIndex           int    `json:"turn_index"`
	Actor               Actor  `json:"actor"`
	ReflectionText      string `json:"reflection_text"`
	ChosenAction        string `json:"chosen_action"`
	ObservedStateDigest string `json:"observed_state_digest"`
	HeavyArtifactRef    string `json:"heavy_artifact_ref,omitempty"`
}
