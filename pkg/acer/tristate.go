package acer

// TriState is a mode that may be missing, off or on.
type TriState int8

const (
	Unsupported TriState = -1
	Off         TriState = 0
	On          TriState = 1

	// Unknown is used where the firmware reported a value we can't decode
	Unknown = Unsupported
)

func (t TriState) String() string {
	switch t {
	case Off:
		return "off"
	case On:
		return "on"
	default:
		return "unsupported"
	}
}

// Supported is true for Off and On
func (t TriState) Supported() bool {
	return t == Off || t == On
}

func boolState(on bool) TriState {
	if on {
		return On
	}
	return Off
}
