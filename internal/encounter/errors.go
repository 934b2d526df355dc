package encounter

import "errors"

var (
	// ErrNoMiniGame is returned for mini-game moves when no game of that kind is running
	ErrNoMiniGame = errors.New("encounter: no mini-game in progress")
	// ErrNoItem is returned when the player has none of the item left
	ErrNoItem = errors.New("encounter: item not in inventory")
	// ErrUnknownSession is returned by the arena for ids it does not hold
	ErrUnknownSession = errors.New("encounter: unknown session")
	// ErrArenaFull is returned when the encounter cap is reached
	ErrArenaFull = errors.New("encounter: arena full")
)
