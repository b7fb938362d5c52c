package redis

import (
	"fmt"

	"github.com/mcoot/koragame/internal/model"
)

const keyPrefix = "kora"

func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey maps a login username to its player id
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

func sessionKey(token string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, token)
}

// matchKey holds the JSON match record. It is the key WATCHed by every
// conditional match write.
func matchKey(id model.MatchID) string {
	return fmt.Sprintf("%s:match:%s", keyPrefix, id)
}

// playsKey is a LIST of JSON plays; the list index is the play's turn
func playsKey(id model.MatchID) string {
	return fmt.Sprintf("%s:match:%s:plays", keyPrefix, id)
}

// turnResultsKey is a LIST of JSON turn results in trick order
func turnResultsKey(id model.MatchID) string {
	return fmt.Sprintf("%s:match:%s:results", keyPrefix, id)
}

// playerMatchesKey is a SET of match ids the player is seated in
func playerMatchesKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_matches:%s", keyPrefix, playerID)
}

// activeMatchesKey is a SET of match ids that are dealt and unfinished
func activeMatchesKey() string {
	return fmt.Sprintf("%s:idx:active_matches", keyPrefix)
}

// matchTransactionsKey is a LIST of JSON transactions settled for a match
func matchTransactionsKey(id model.MatchID) string {
	return fmt.Sprintf("%s:txs:match:%s", keyPrefix, id)
}

// playerTransactionsKey is a LIST of JSON transactions for a player
func playerTransactionsKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:txs:player:%s", keyPrefix, playerID)
}
