package forum

import (
	"unicode/utf8"

	"course-forum-backend/internal/model"
)

// MaxEmojiBytes bounds the size of a reaction.
const MaxEmojiBytes = 16

// Transition returns the voter's next state and the score delta for a voter
// holding current who requests requested. Repeating the held vote clears it,
// requesting the opposite vote switches it.
func Transition(current, requested model.VoteType) (model.VoteType, int) {
	switch requested {
	case model.VoteUp:
		switch current {
		case model.VoteUp:
			return model.VoteNone, -1
		case model.VoteDown:
			return model.VoteUp, 2
		default:
			return model.VoteUp, 1
		}
	case model.VoteDown:
		switch current {
		case model.VoteDown:
			return model.VoteNone, 1
		case model.VoteUp:
			return model.VoteDown, -2
		default:
			return model.VoteDown, -1
		}
	}
	return current, 0
}

// ApplyVote applies a vote to a copy of votes and returns the copy with the
// result. The score is adjusted by the transition delta, not recomputed.
func ApplyVote(votes map[string]model.VoteType, score int, voterID string, requested model.VoteType) (map[string]model.VoteType, model.VoteResult) {
	next, delta := Transition(votes[voterID], requested)

	updated := make(map[string]model.VoteType, len(votes)+1)
	for k, v := range votes {
		updated[k] = v
	}
	if next == model.VoteNone {
		delete(updated, voterID)
	} else {
		updated[voterID] = next
	}

	return updated, model.VoteResult{Vote: next, Delta: delta, Score: score + delta}
}

// Tally recomputes a score from a votes map. Used to check the denormalised
// score, never to maintain it.
func Tally(votes map[string]model.VoteType) int {
	score := 0
	for _, v := range votes {
		switch v {
		case model.VoteUp:
			score++
		case model.VoteDown:
			score--
		}
	}
	return score
}

// ToggleReaction returns the reaction a user ends up with: the same emoji
// again removes it, a different one replaces it.
func ToggleReaction(current, requested string) string {
	if current == requested {
		return ""
	}
	return requested
}

// ValidEmoji reports whether s is acceptable as a reaction.
func ValidEmoji(s string) bool {
	return s != "" && len(s) <= MaxEmojiBytes && utf8.ValidString(s)
}
