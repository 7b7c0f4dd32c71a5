package game

// QuestCount is the number of quests in a game.
const QuestCount = 5

// WinningScore is how many quests a side needs.
const WinningScore = 3

// MaxRejections ends the game for evil when reached.
const MaxRejections = 5

// QuestRequirement 每个任务所需人数以及失败所需票数
type QuestRequirement struct {
	PlayersNeeded int
	FailsRequired int
}

var questAssigns = map[int][QuestCount]QuestRequirement{
	5:  {{2, 1}, {3, 1}, {2, 1}, {3, 1}, {3, 1}},
	6:  {{2, 1}, {3, 1}, {3, 1}, {3, 1}, {4, 1}},
	7:  {{2, 1}, {3, 1}, {3, 1}, {4, 2}, {4, 1}},
	8:  {{3, 1}, {4, 1}, {4, 1}, {5, 2}, {5, 1}},
	9:  {{3, 1}, {4, 1}, {4, 1}, {5, 2}, {5, 1}},
	10: {{3, 1}, {4, 1}, {4, 1}, {5, 2}, {5, 1}},
}

var ordinals = [QuestCount]string{"first", "second", "third", "fourth", "last"}

// Requirement looks up the quest table. The caller guarantees a valid player
// count and quest index.
func Requirement(playerCount, quest int) QuestRequirement {
	return questAssigns[playerCount][quest]
}

// Ordinal names a quest in narration ("first" ... "last").
func Ordinal(quest int) string {
	if quest < 0 || quest >= QuestCount {
		return ""
	}
	return ordinals[quest]
}

// Outcome of a resolved quest.
type Outcome string

const (
	OutcomeGood Outcome = "good"
	OutcomeBad  Outcome = "bad"
)

// Score 任务胜负统计
type Score struct {
	Good int
	Bad  int
}

// Side is the winning team of a finished game.
type Side string

const (
	SideNone Side = ""
	SideGood Side = "good"
	SideEvil Side = "evil"
)
