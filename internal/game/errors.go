package game

import "errors"

// Reason explains why a player action was rejected. Rejections never change
// stored state and are safe to retry later.
type Reason string

const (
	ReasonNotInBettingWindow  Reason = "NOT_IN_BETTING_WINDOW"
	ReasonAlreadyBetThisRound Reason = "ALREADY_BET_THIS_ROUND"
	ReasonInsufficientBalance Reason = "INSUFFICIENT_BALANCE"
	ReasonInvalidAmount       Reason = "INVALID_AMOUNT"
	ReasonInvalidAutoCashout  Reason = "INVALID_AUTO_CASHOUT"
	ReasonRoundNotActive      Reason = "ROUND_NOT_ACTIVE"
	ReasonNotPlaying          Reason = "NOT_PLAYING"
	ReasonAlreadySettled      Reason = "ALREADY_SETTLED"
	ReasonInvalidUsername     Reason = "INVALID_USERNAME"
	ReasonUsernameTaken       Reason = "USERNAME_TAKEN"
	ReasonPlayerInRound       Reason = "PLAYER_IN_ROUND"
	ReasonUnavailable         Reason = "UNAVAILABLE"
)

var reasonMessages = map[Reason]string{
	ReasonNotInBettingWindow:  "Betting is closed",
	ReasonAlreadyBetThisRound: "You already have a bet in this round",
	ReasonInsufficientBalance: "Insufficient balance",
	ReasonInvalidAmount:       "Invalid bet amount",
	ReasonInvalidAutoCashout:  "Auto cashout must be at least 1.01x",
	ReasonRoundNotActive:      "Round is not running",
	ReasonNotPlaying:          "No bet in this round",
	ReasonAlreadySettled:      "Bet already settled",
	ReasonInvalidUsername:     "Invalid username",
	ReasonUsernameTaken:       "Username is already taken",
	ReasonPlayerInRound:       "Cannot rename while a bet is open",
	ReasonUnavailable:         "Service temporarily unavailable, try again",
}

func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

var (
	ErrRoundNotFound  = errors.New("round not initialised")
	ErrStaleRound     = errors.New("round changed underneath the operation")
	ErrBadScriptReply = errors.New("unexpected script reply")
)
