package sequence

// Keyframe is a value at T seconds into a clip. Ease shapes the segment
// that starts here.
type Keyframe struct {
	T    float64 `yaml:"t" json:"t"`
	V    float64 `yaml:"v" json:"v"`
	Ease string  `yaml:"ease,omitempty" json:"ease,omitempty"` // linear, smooth, cubic
}

// Envelope is a list of keyframes sorted by T.
type Envelope []Keyframe

// Clip shows one scene for DurationS seconds and, when XFadeS > 0, fades
// into the next clip over its last XFadeS seconds.
type Clip struct {
	Scene     string              `yaml:"scene" json:"scene"`
	DurationS float64             `yaml:"duration_s" json:"duration_s"`
	XFadeS    float64             `yaml:"xfade_s,omitempty" json:"xfade_s,omitempty"`
	Params    map[string]Envelope `yaml:"params,omitempty" json:"params,omitempty"`
}

// Program is an ordered playlist.
type Program struct {
	Loop  bool   `yaml:"loop" json:"loop"`
	Clips []Clip `yaml:"clips" json:"clips"`
}

type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Hooks let the player drive whatever renders the scenes.
type Hooks struct {
	// SetScene makes name the active scene immediately.
	SetScene func(name string)
	// ArmNext prepares the scene that is about to fade in.
	ArmNext func(name string)
	// SetCrossfade mixes active (0) towards armed (1).
	SetCrossfade func(alpha float64)
	// SetParam is called every tick for each automated parameter.
	SetParam func(name string, v float64)
}
