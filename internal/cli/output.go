package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/koragame/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Player:
		o.printPlayer(v)
	case response.AuthResponse:
		o.printAuth(v)
	case response.Match:
		o.printMatch(v)
	case []response.Match:
		o.printMatchList(v)
	case response.MatchLog:
		o.printMatchLog(v)
	case response.PlayResponse:
		o.printPlayResponse(v)
	case response.ConcedeResponse:
		o.printMatch(v.Match)
		o.printTransactions(v.Transactions)
	case response.VerifyResponse:
		fmt.Fprintf(o.w, "Match %s verified: %t (%d plays replayed)\n", v.MatchID, v.Verified, v.Plays)
	case response.BalanceResponse:
		fmt.Fprintf(o.w, "Balance: %d\n", v.Balance)
		o.printTransactions(v.Transactions)
	case []response.Transaction:
		o.printTransactions(v)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p response.Player) {
	guest := "no"
	if p.IsGuest {
		guest = "yes"
	}
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.DisplayName, p.ID)
	fmt.Fprintf(o.w, "Guest: %s\n", guest)
	if p.IsBot {
		fmt.Fprintf(o.w, "Bot: %s\n", p.BotDifficulty)
	}
}

func (o *Output) printAuth(a response.AuthResponse) {
	o.printPlayer(a.Player)
	fmt.Fprintf(o.w, "Token: %s\n", a.SessionToken)
}

func (o *Output) printMatch(m response.Match) {
	fmt.Fprintf(o.w, "Match: %s\n", m.ID)
	fmt.Fprintf(o.w, "Status: %s\n", m.Status)
	fmt.Fprintf(o.w, "Bet: %d\n", m.BetAmount)
	fmt.Fprintf(o.w, "Players: %s vs %s\n", seatName(m.Players[0]), seatName(m.Players[1]))

	if m.Status == "waiting" {
		return
	}

	fmt.Fprintf(o.w, "Turn: %d\n", m.CurrentTurn)
	fmt.Fprintf(o.w, "Tricks: %d - %d\n", m.TricksWon[0], m.TricksWon[1])
	if m.CurrentPlayerID != "" {
		fmt.Fprintf(o.w, "To play: %s\n", m.CurrentPlayerID)
	}
	if m.TrickLead != nil {
		fmt.Fprintf(o.w, "On the table: %s (%s)\n", m.TrickLead.Card, m.DemandedSuit)
	}
	if m.TurnDeadline != nil {
		fmt.Fprintf(o.w, "Deadline: %s\n", m.TurnDeadline.Format("15:04:05"))
	}
	for seat, hand := range m.Hands {
		if hand == nil {
			fmt.Fprintf(o.w, "Hand %d: %d cards\n", seat, m.HandSizes[seat])
			continue
		}
		fmt.Fprintf(o.w, "Hand %d: %s\n", seat, strings.Join(hand, " "))
	}
	if len(m.LegalCards) > 0 {
		fmt.Fprintf(o.w, "Legal: %s\n", strings.Join(m.LegalCards, " "))
	}

	if m.WinnerID != "" {
		fmt.Fprintf(o.w, "Winner: %s (%s, x%d)\n", m.WinnerID, m.VictoryType, m.KoraMultiplier)
	}
	if m.ConcededBy != "" {
		fmt.Fprintf(o.w, "Conceded by: %s\n", m.ConcededBy)
	}
	if m.Seed != "" {
		fmt.Fprintf(o.w, "Seed: %s\n", m.Seed)
	}
}

func (o *Output) printMatchList(matches []response.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(o.w, "No matches")
		return
	}
	for _, m := range matches {
		fmt.Fprintf(o.w, "%s  %-8s  bet %-6d  %s vs %s\n",
			m.ID, m.Status, m.BetAmount, seatName(m.Players[0]), seatName(m.Players[1]))
	}
}

func (o *Output) printMatchLog(l response.MatchLog) {
	o.printMatch(l.Match)
	if len(l.Plays) == 0 {
		return
	}
	fmt.Fprintln(o.w, "\nPlays:")
	for _, p := range l.Plays {
		fmt.Fprintf(o.w, "  %2d  %-4s %s\n", p.Turn, p.Card, p.PlayerID)
	}
	if len(l.TurnResults) > 0 {
		fmt.Fprintln(o.w, "\nTricks:")
		for i, r := range l.TurnResults {
			fmt.Fprintf(o.w, "  %d  %s won with %s over %s\n", i+1, r.WinnerID, r.WinningCard, r.LosingCard)
		}
	}
}

func (o *Output) printPlayResponse(p response.PlayResponse) {
	if p.Duplicate {
		fmt.Fprintf(o.w, "Already played %s at turn %d\n", p.Play.Card, p.Play.Turn)
	} else {
		fmt.Fprintf(o.w, "Played %s at turn %d\n", p.Play.Card, p.Play.Turn)
	}
	if p.Result != nil {
		fmt.Fprintf(o.w, "Trick won by %s with %s\n", p.Result.WinnerID, p.Result.WinningCard)
	}
	o.printMatch(p.Match)
	o.printTransactions(p.Transactions)
}

func (o *Output) printTransactions(txs []response.Transaction) {
	if len(txs) == 0 {
		return
	}
	fmt.Fprintln(o.w, "Transactions:")
	for _, tx := range txs {
		fmt.Fprintf(o.w, "  %s  %+d  %s  (%s)\n", tx.PlayerID, tx.Amount, tx.Type, tx.MatchID)
	}
}

func seatName(id string) string {
	if id == "" {
		return "(open)"
	}
	return id
}
