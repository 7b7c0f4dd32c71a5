package game

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// MatchThreshold is the similarity a message must exceed to count as a command word.
const MatchThreshold = 0.5

const (
	WordApprove = "approve"
	WordReject  = "reject"
	WordSucceed = "succeed"
	WordFail    = "fail"
)

var (
	proposalPattern = regexp.MustCompile(`(?i)^send\s`)
	killPattern     = regexp.MustCompile(`(?i)^kill (.+)`)
	nameSeparators  = regexp.MustCompile(`[,\s]+`)
)

// Similarity is the normalized edit-distance similarity of text against word,
// in [0,1], after trimming and lower-casing text.
func Similarity(text, word string) float64 {
	a := strings.ToLower(strings.TrimSpace(text))
	b := strings.ToLower(word)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Matches reports whether text is close enough to word.
func Matches(text, word string) bool {
	return Similarity(text, word) > MatchThreshold
}

// ParseVote reads an approve/reject vote. Approve is checked first.
func ParseVote(text string) (approve bool, ok bool) {
	if Matches(text, WordApprove) {
		return true, true
	}
	if Matches(text, WordReject) {
		return false, true
	}
	return false, false
}

// ParseQuestResponse reads a succeed/fail quest card; fail wins when both match.
func ParseQuestResponse(text string) (fail bool, ok bool) {
	succeed := Matches(text, WordSucceed)
	failed := Matches(text, WordFail)
	if !succeed && !failed {
		return false, false
	}
	return failed, true
}

// ParseProposal reads `send name1, name2 ...`.
func ParseProposal(text string) ([]string, bool) {
	text = strings.TrimSpace(text)
	if !proposalPattern.MatchString(text) {
		return nil, false
	}
	fields := nameSeparators.Split(text, -1)
	var names []string
	for _, f := range fields[1:] {
		if f != "" {
			names = append(names, f)
		}
	}
	return names, true
}

// ParseKill reads `kill <name>`.
func ParseKill(text string) (string, bool) {
	m := killPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}
