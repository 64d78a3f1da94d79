package pipeline

// Stage is the state of one ask. Stages run in declaration order; any of them may
// end the request as failed.
type Stage int

const (
	Embedding Stage = iota
	Retrieving
	PromptBuilding
	Generating
	Executing
	Done
)

var stageNames = [...]string{
	Embedding:      "embedding",
	Retrieving:     "retrieving",
	PromptBuilding: "prompt_building",
	Generating:     "generating",
	Executing:      "executing",
	Done:           "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
