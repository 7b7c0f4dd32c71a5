package game

// Color is a coarse style hint for the transport.
type Color string

const (
	ColorNone     Color = ""
	ColorProposal Color = "#a60"
	ColorVote     Color = "#555"
	ColorQuest    Color = "#ea0"
	ColorGood     Color = "#08e"
	ColorEvil     Color = "#e00"
)

// Kind marks notifications that open or close a game.
type Kind string

const (
	KindNone  Kind = ""
	KindStart Kind = "start"
	KindEnd   Kind = "end"
)
