package main

import (
	"ascnd/config"
	"ascnd/core"
	"ascnd/engine"
)

// toBoards converts configured leaderboards. An empty result leaves the
// builder's default board in place.
func toBoards(in []config.BoardConfig) []engine.Board {
	out := make([]engine.Board, 0, len(in))
	for _, b := range in {
		board := engine.Board{
			ID:            b.ID,
			Name:          b.Name,
			ResetInterval: b.ResetInterval,
			Anticheat: engine.AnticheatPolicy{
				Enabled:               b.Anticheat.Enabled,
				MinScore:              b.Anticheat.MinScore,
				MaxScore:              b.Anticheat.MaxScore,
				MaxSubmissions:        b.Anticheat.MaxSubmissions,
				Window:                b.Anticheat.Window,
				RequireIdempotencyKey: b.Anticheat.RequireIdempotencyKey,
				Action:                core.AnticheatAction(b.Anticheat.Action),
			},
		}
		for _, br := range b.Brackets {
			board.Brackets = append(board.Brackets, engine.Bracket{Name: br.Name, Color: br.Color, MinPercentile: br.MinPercentile})
		}
		for _, v := range b.Views {
			board.Views = append(board.Views, engine.View{Slug: v.Slug, Name: v.Name, Key: v.Key, Value: v.Value})
		}
		out = append(out, board)
	}
	return out
}
