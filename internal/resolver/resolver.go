// Package resolver matches generated track candidates against the music
// platform's catalog. Generated titles are frequently imprecise, so each
// candidate is tried with progressively looser queries until one matches.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/spotify"
)

// Searcher is the single catalog primitive resolution needs.
type Searcher interface {
	SearchTrack(ctx context.Context, token, query string) (*spotify.Track, error)
}

type Resolver struct {
	search Searcher
	logger *slog.Logger
}

func New(search Searcher, logger *slog.Logger) *Resolver {
	return &Resolver{search: search, logger: logger}
}

// Resolve maps candidates to catalog tracks, preserving candidate order and
// stopping once targetCount tracks are found. Duplicate catalog matches are
// dropped so two candidates never resolve to the same track.
//
// A candidate whose searches all miss, or whose search fails for any reason
// other than rate limiting, is skipped. Rate limiting aborts the whole run
// since every remaining candidate would hit the same wall.
func (r *Resolver) Resolve(ctx context.Context, token string, candidates []model.Track, targetCount int) ([]model.Track, error) {
	resolved := make([]model.Track, 0, targetCount)
	seen := make(map[string]bool)

	for _, cand := range candidates {
		if len(resolved) >= targetCount {
			break
		}

		track, err := r.resolveOne(ctx, token, cand)
		if err != nil {
			if errors.Is(err, apperror.ErrRateLimited) || ctx.Err() != nil {
				return nil, err
			}
			r.logger.Warn("track search failed, skipping candidate",
				"title", cand.Title, "artist", cand.Artist, "error", err)
			continue
		}
		if track == nil {
			r.logger.Debug("no catalog match for candidate",
				"title", cand.Title, "artist", cand.Artist)
			continue
		}
		if seen[track.ID] {
			continue
		}
		seen[track.ID] = true

		resolved = append(resolved, model.Track{
			Title:          track.Name,
			Artist:         track.ArtistName(),
			SpotifyTrackID: track.ID,
		})
	}

	return resolved, nil
}

// resolveOne walks the query tiers for a single candidate: a fielded search
// first, then free text with the artist, then the bare title. The first hit
// wins.
func (r *Resolver) resolveOne(ctx context.Context, token string, cand model.Track) (*spotify.Track, error) {
	for _, query := range queryTiers(cand) {
		track, err := r.search.SearchTrack(ctx, token, query)
		if err != nil {
			return nil, err
		}
		if track != nil {
			return track, nil
		}
	}
	return nil, nil
}

func queryTiers(cand model.Track) []string {
	title := strings.TrimSpace(cand.Title)
	artist := strings.TrimSpace(cand.Artist)

	if artist == "" {
		return []string{title}
	}
	return []string{
		fmt.Sprintf("track:%s artist:%s", title, artist),
		fmt.Sprintf("%s %s", title, artist),
		title,
	}
}
