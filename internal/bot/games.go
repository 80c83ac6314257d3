package bot

import (
	"context"
	"errors"

	"github.com/tandembot/tandem/internal/action"
	"github.com/tandembot/tandem/internal/games/alias"
	"github.com/tandembot/tandem/internal/games/coin"
	"github.com/tandembot/tandem/internal/transport"
)

func (b *Bot) showGamesMenu(ctx context.Context, accountID int64) error {
	_, err := b.tell(ctx, accountID, menuGames, difficultyControls())
	return err
}

func (b *Bot) showCoinMenu(ctx context.Context, accountID int64) error {
	controls := [][]transport.Control{transport.Row(
		transport.Control{Label: "Toss once", ActionID: action.CoinOne},
		transport.Control{Label: "Series of 3", ActionID: action.CoinSeries3},
		transport.Control{Label: "Series of 5", ActionID: action.CoinSeries5},
	)}
	_, err := b.tell(ctx, accountID, menuCoin, controls)
	return err
}

func (b *Bot) handleGameAction(ctx context.Context, event transport.Event, parts []string) error {
	switch event.ActionID {
	case action.CoinOne:
		b.say(ctx, event.AccountID, b.render.CoinResult(coin.Toss()))
		return nil
	case action.CoinSeries3:
		b.say(ctx, event.AccountID, b.render.CoinSeries(coin.Series(coin.SeriesShort)))
		return nil
	case action.CoinSeries5:
		b.say(ctx, event.AccountID, b.render.CoinSeries(coin.Series(coin.SeriesLong)))
		return nil
	case action.AliasEasy, action.AliasMedium, action.AliasHard:
		if len(parts) != 3 {
			return nil
		}
		return b.startAlias(ctx, event, parts[2])
	case action.AliasGuess:
		round, err := b.alias.Guess(ctx, event.AccountID)
		return b.aliasRound(ctx, event, round, err)
	case action.AliasSkip:
		round, err := b.alias.Skip(ctx, event.AccountID)
		return b.aliasRound(ctx, event, round, err)
	case action.AliasStop:
		score, err := b.alias.Stop(ctx, event.AccountID)
		if errors.Is(err, alias.ErrNoSession) {
			b.say(ctx, event.AccountID, b.render.AliasNoSession())
			return nil
		}
		if err != nil {
			return err
		}
		b.rewrite(ctx, event.Ref, b.render.AliasScore(score), difficultyControls())
		return nil
	}
	b.say(ctx, event.AccountID, b.render.UnknownInput())
	return nil
}

func (b *Bot) startAlias(ctx context.Context, event transport.Event, difficulty string) error {
	round, err := b.alias.Start(ctx, event.AccountID, difficulty)
	if errors.Is(err, alias.ErrUnknownDifficulty) {
		b.say(ctx, event.AccountID, b.render.UnknownInput())
		return nil
	}
	if err != nil {
		return err
	}
	text := b.render.AliasRules() + "\n" + b.render.AliasWord(round.Word)
	_, err = b.tell(ctx, event.AccountID, text, roundControls())
	return err
}

func (b *Bot) aliasRound(ctx context.Context, event transport.Event, round alias.Round, err error) error {
	if errors.Is(err, alias.ErrNoSession) {
		b.say(ctx, event.AccountID, b.render.AliasNoSession())
		return nil
	}
	if err != nil {
		return err
	}
	b.rewrite(ctx, event.Ref, b.render.AliasWord(round.Word), roundControls())
	return nil
}

func difficultyControls() [][]transport.Control {
	return [][]transport.Control{transport.Row(
		transport.Control{Label: "Easy", ActionID: action.AliasEasy},
		transport.Control{Label: "Medium", ActionID: action.AliasMedium},
		transport.Control{Label: "Hard", ActionID: action.AliasHard},
	)}
}

func roundControls() [][]transport.Control {
	return [][]transport.Control{
		transport.Row(
			transport.Control{Label: "✅ Guessed", ActionID: action.AliasGuess},
			transport.Control{Label: "⏭ Skip", ActionID: action.AliasSkip},
		),
		transport.Row(transport.Control{Label: "🏁 Stop", ActionID: action.AliasStop}),
	}
}
