package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Matches are cloned on the way in and out so callers never share hands.
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	sessions          map[string]*model.Session
	matches           map[model.MatchID]*model.Match
	playerMatches     map[model.PlayerID]map[model.MatchID]struct{}
	plays             map[model.MatchID][]model.Play
	turnResults       map[model.MatchID][]model.TurnResult
	transactions      map[model.MatchID][]model.Transaction
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		sessions:          make(map[string]*model.Session),
		matches:           make(map[model.MatchID]*model.Match),
		playerMatches:     make(map[model.PlayerID]map[model.MatchID]struct{}),
		plays:             make(map[model.MatchID][]model.Play),
		turnResults:       make(map[model.MatchID][]model.TurnResult),
		transactions:      make(map[model.MatchID][]model.Transaction),
	}
}

var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *player
	s.players[player.ID] = &p
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredPlayers[rp.PlayerID] = rp
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := *session
	s.sessions[session.Token] = &sess
	return nil
}

func (s *Storage) GetSession(ctx context.Context, token string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	sess := *session
	return &sess, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Match operations

func (s *Storage) CreateMatch(ctx context.Context, match *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matches[match.ID]; exists {
		return fmt.Errorf("match %s already exists", match.ID)
	}
	s.putMatch(match)
	return nil
}

func (s *Storage) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, model.ErrMatchNotFound
	}
	c := m.Clone()
	return &c, nil
}

func (s *Storage) UpdateMatch(ctx context.Context, match *model.Match, expectedStatus model.MatchStatus, expectedTurn int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkExpected(match.ID, expectedStatus, expectedTurn); err != nil {
		return err
	}
	s.putMatch(match)
	return nil
}

func (s *Storage) ListMatchesForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]*model.Match, 0, len(s.playerMatches[playerID]))
	for id := range s.playerMatches[playerID] {
		c := s.matches[id].Clone()
		matches = append(matches, &c)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

func (s *Storage) ListActiveMatches(ctx context.Context) ([]*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := []*model.Match{}
	for _, m := range s.matches {
		if m.IsActive() {
			c := m.Clone()
			matches = append(matches, &c)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

// Play log operations

func (s *Storage) CommitPlay(ctx context.Context, match *model.Match, play model.Play, result *model.TurnResult, expectedTurn int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.matches[match.ID]
	if !ok {
		return model.ErrMatchNotFound
	}
	if stored.IsFinished() {
		return model.ErrMatchFinished
	}
	if stored.CurrentTurn != expectedTurn || len(s.plays[match.ID]) != expectedTurn {
		return model.ErrStaleTurn
	}
	s.putMatch(match)
	s.plays[match.ID] = append(s.plays[match.ID], play)
	if result != nil {
		s.turnResults[match.ID] = append(s.turnResults[match.ID], *result)
	}
	return nil
}

func (s *Storage) GetPlays(ctx context.Context, matchID model.MatchID) ([]model.Play, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.matches[matchID]; !ok {
		return nil, model.ErrMatchNotFound
	}
	return append([]model.Play{}, s.plays[matchID]...), nil
}

func (s *Storage) GetPlay(ctx context.Context, matchID model.MatchID, turn int) (*model.Play, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plays := s.plays[matchID]
	if turn < 0 || turn >= len(plays) {
		return nil, model.ErrPlayNotFound
	}
	p := plays[turn]
	return &p, nil
}

func (s *Storage) GetTurnResults(ctx context.Context, matchID model.MatchID) ([]model.TurnResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.matches[matchID]; !ok {
		return nil, model.ErrMatchNotFound
	}
	return append([]model.TurnResult{}, s.turnResults[matchID]...), nil
}

// Transaction operations

func (s *Storage) SaveTransactions(ctx context.Context, matchID model.MatchID, txs []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transactions[matchID]) > 0 {
		return model.ErrAlreadySettled
	}
	s.transactions[matchID] = append([]model.Transaction(nil), txs...)
	return nil
}

func (s *Storage) GetTransactionsForMatch(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Transaction{}, s.transactions[matchID]...), nil
}

func (s *Storage) GetTransactionsForPlayer(ctx context.Context, playerID model.PlayerID) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []model.Transaction{}
	for _, txs := range s.transactions {
		for _, tx := range txs {
			if tx.PlayerID == playerID {
				result = append(result, tx)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// putMatch stores a clone and indexes it by player. Callers hold the write lock.
func (s *Storage) putMatch(match *model.Match) {
	c := match.Clone()
	s.matches[match.ID] = &c
	for _, p := range match.Players {
		if p == "" {
			continue
		}
		if s.playerMatches[p] == nil {
			s.playerMatches[p] = make(map[model.MatchID]struct{})
		}
		s.playerMatches[p][match.ID] = struct{}{}
	}
}

// checkExpected verifies the stored match is still in the expected state.
// Callers hold the write lock.
func (s *Storage) checkExpected(id model.MatchID, expectedStatus model.MatchStatus, expectedTurn int) error {
	stored, ok := s.matches[id]
	if !ok {
		return model.ErrMatchNotFound
	}
	if stored.Status != expectedStatus || stored.CurrentTurn != expectedTurn {
		if stored.IsFinished() {
			return model.ErrMatchFinished
		}
		return model.ErrStaleTurn
	}
	return nil
}
