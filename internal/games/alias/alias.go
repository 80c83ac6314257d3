// Package alias implements the word-explaining game played against the
// partner offline, with the bot dealing words and keeping score.
package alias

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tandembot/tandem/internal/storage"
)

//go:embed decks/*.yaml
var deckFS embed.FS

// Difficulty levels matching the embedded decks.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var (
	// ErrNoSession indicates no active game for the account.
	ErrNoSession = errors.New("no active game session")
	// ErrUnknownDifficulty indicates no deck matches the requested level.
	ErrUnknownDifficulty = errors.New("unknown difficulty")
)

type deck struct {
	Level string   `yaml:"level"`
	Words []string `yaml:"words"`
}

func loadDecks() (map[string][]string, error) {
	decks := make(map[string][]string)
	entries, err := fs.ReadDir(deckFS, "decks")
	if err != nil {
		return nil, fmt.Errorf("read deck dir: %w", err)
	}
	for _, entry := range entries {
		raw, err := deckFS.ReadFile("decks/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read deck %s: %w", entry.Name(), err)
		}
		var d deck
		if err := yaml.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parse deck %s: %w", entry.Name(), err)
		}
		if d.Level == "" || len(d.Words) == 0 {
			return nil, fmt.Errorf("deck %s is empty", entry.Name())
		}
		decks[d.Level] = d.Words
	}
	return decks, nil
}

// Round is one dealt word with the running score.
type Round struct {
	Word  string
	Score int
}

// Service deals words and tracks per-account sessions.
type Service struct {
	store storage.AliasStore
	decks map[string][]string
	clock func() time.Time
	pick  func(n int) int
}

// NewService constructs the game service from the embedded decks.
func NewService(store storage.AliasStore, clock func() time.Time) (*Service, error) {
	decks, err := loadDecks()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, decks: decks, clock: clock, pick: rand.IntN}, nil
}

// Start opens a fresh session at the given difficulty, replacing any prior
// session, and deals the first word.
func (s *Service) Start(ctx context.Context, accountID int64, difficulty string) (Round, error) {
	if s == nil || s.store == nil {
		return Round{}, fmt.Errorf("alias store is not configured")
	}
	words, ok := s.decks[difficulty]
	if !ok {
		return Round{}, ErrUnknownDifficulty
	}
	now := s.clock().UTC()
	word := s.deal(words, nil, "")
	session := storage.AliasSession{
		AccountID:   accountID,
		Difficulty:  difficulty,
		Status:      storage.AliasStatusActive,
		CurrentWord: word,
		LastWord:    word,
		UsedWords:   []string{word},
		UpdatedAt:   now,
		CreatedAt:   now,
	}
	if err := s.store.UpsertAliasSession(ctx, session); err != nil {
		return Round{}, err
	}
	return Round{Word: word}, nil
}

// Guess awards a point for the current word and deals the next one.
func (s *Service) Guess(ctx context.Context, accountID int64) (Round, error) {
	session, err := s.activeSession(ctx, accountID)
	if err != nil {
		return Round{}, err
	}
	now := s.clock().UTC()
	if err := s.store.AddAliasScore(ctx, accountID, 1, now); err != nil {
		return Round{}, err
	}
	word, err := s.advance(ctx, session, now)
	if err != nil {
		return Round{}, err
	}
	return Round{Word: word, Score: session.Score + 1}, nil
}

// Skip deals the next word without scoring.
func (s *Service) Skip(ctx context.Context, accountID int64) (Round, error) {
	session, err := s.activeSession(ctx, accountID)
	if err != nil {
		return Round{}, err
	}
	word, err := s.advance(ctx, session, s.clock().UTC())
	if err != nil {
		return Round{}, err
	}
	return Round{Word: word, Score: session.Score}, nil
}

// Stop closes the session and reports the final score.
func (s *Service) Stop(ctx context.Context, accountID int64) (int, error) {
	session, err := s.activeSession(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if err := s.store.StopAliasSession(ctx, accountID, s.clock().UTC()); err != nil {
		return 0, err
	}
	return session.Score, nil
}

func (s *Service) activeSession(ctx context.Context, accountID int64) (storage.AliasSession, error) {
	if s == nil || s.store == nil {
		return storage.AliasSession{}, fmt.Errorf("alias store is not configured")
	}
	session, err := s.store.GetActiveAliasSession(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.AliasSession{}, ErrNoSession
		}
		return storage.AliasSession{}, err
	}
	return session, nil
}

func (s *Service) advance(ctx context.Context, session storage.AliasSession, now time.Time) (string, error) {
	words, ok := s.decks[session.Difficulty]
	if !ok {
		return "", ErrUnknownDifficulty
	}
	used := session.UsedWords
	// A fully exhausted deck recycles, still avoiding the word just shown.
	if len(used) >= len(words) {
		used = nil
	}
	word := s.deal(words, used, session.CurrentWord)
	if err := s.store.SetAliasRound(ctx, session.AccountID, word, append(used, word), now); err != nil {
		return "", err
	}
	return word, nil
}

// deal picks a random word not yet used and different from the last one
// shown, when the deck allows it.
func (s *Service) deal(words []string, used []string, last string) string {
	usedSet := make(map[string]struct{}, len(used)+1)
	for _, w := range used {
		usedSet[w] = struct{}{}
	}
	if last != "" {
		usedSet[last] = struct{}{}
	}
	var candidates []string
	for _, w := range words {
		if _, taken := usedSet[w]; !taken {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		candidates = words
	}
	return candidates[s.pick(len(candidates))]
}
