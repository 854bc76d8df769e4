package checkpoint

import "fmt"

// Stage is one step of the diary pipeline whose completion is encoded by the
// presence of its artifacts.
type Stage int

const (
	StagePrompt Stage = iota
	StageGeneration
	StagePublish
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StagePrompt, StageGeneration, StagePublish}

func (s Stage) String() string {
	switch s {
	case StagePrompt:
		return "prompt"
	case StageGeneration:
		return "generation"
	case StagePublish:
		return "publish"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Kinds returns the artifacts that must all exist for the stage to count as
// complete. The image prompt is intermediate and does not gate generation.
func (s Stage) Kinds() []Kind {
	switch s {
	case StagePrompt:
		return []Kind{InputPrompt}
	case StageGeneration:
		return []Kind{GeneratedPost, GeneratedImage}
	case StagePublish:
		return []Kind{PublishMarker}
	default:
		return nil
	}
}

// Complete reports whether every artifact of the stage exists for date.
func (s Stage) Complete(r Reader, date string) (bool, error) {
	missing, err := Missing(r, date, s.Kinds()...)
	if err != nil {
		return false, fmt.Errorf("checking %s stage: %w", s, err)
	}
	return len(missing) == 0, nil
}

// Missing returns the kinds that do not exist for date, in the given order.
func Missing(r Reader, date string, kinds ...Kind) ([]Kind, error) {
	var missing []Kind
	for _, k := range kinds {
		ok, err := r.Exists(date, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
