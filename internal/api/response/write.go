package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// TurnHeader carries the match's current turn so clients can build the
// next expected_turn without parsing the body
const TurnHeader = "X-Match-Turn"

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// MatchJSON writes a JSON response for a match-scoped endpoint
func MatchJSON(w http.ResponseWriter, status int, turn int, data any) {
	w.Header().Set(TurnHeader, strconv.Itoa(turn))
	JSON(w, status, data)
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
