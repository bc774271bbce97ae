package pipeline

type Stage int

const (
	StageIdle Stage = iota
	StageAssemblingVideo
	StageScanningFrames
	StagePublishing
	StageAnnotating
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAssemblingVideo:
		return "assembling_video"
	case StageScanningFrames:
		return "scanning_frames"
	case StagePublishing:
		return "publishing"
	case StageAnnotating:
		return "annotating"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether a run in this stage has finished.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}
