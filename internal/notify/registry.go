package notify

type Importance string

const (
	ImportanceDefault Importance = "default"
	ImportanceHigh    Importance = "high"
	ImportanceMax     Importance = "max"
)

// Channel carries the delivery properties for one notification category.
type Channel struct {
	Importance   Importance
	SoundEnabled bool
	Vibration    []int // alternating vibrate/pause millis
}

// The registry is static; there is no runtime mutation.
var channels = map[PayloadType]Channel{
	TypeChat: {
		Importance:   ImportanceHigh,
		SoundEnabled: true,
		Vibration:    []int{200, 100, 200},
	},
	TypeAppointment: {
		Importance:   ImportanceHigh,
		SoundEnabled: true,
		Vibration:    []int{300, 150, 300},
	},
	TypeEmergency: {
		Importance:   ImportanceMax,
		SoundEnabled: true,
		Vibration:    []int{400, 200, 400, 200, 400},
	},
	TypeSystem: {
		Importance:   ImportanceDefault,
		SoundEnabled: false,
		Vibration:    nil,
	},
}

var defaultChannel = Channel{
	Importance:   ImportanceDefault,
	SoundEnabled: true,
	Vibration:    []int{250},
}

func ChannelFor(t PayloadType) Channel {
	if ch, ok := channels[t]; ok {
		return ch
	}
	return defaultChannel
}

// Note is one step of a synthesized tone sequence.
type Note struct {
	FreqHz     int
	DurationMs int
}

var (
	toneChat        = []Note{{880, 120}, {880, 120}}                         // double beep
	toneEmergency   = []Note{{988, 200}, {784, 200}, {988, 200}, {784, 200}} // four-note alarm
	toneAppointment = []Note{{523, 150}, {659, 150}, {784, 200}}             // ascending chime
	toneDefault     = []Note{{880, 180}}                                     // single beep
)

func ToneFor(t PayloadType) []Note {
	switch t {
	case TypeChat:
		return toneChat
	case TypeEmergency:
		return toneEmergency
	case TypeAppointment:
		return toneAppointment
	default:
		return toneDefault
	}
}
