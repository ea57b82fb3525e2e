package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleStreamEpisode handles GET /api/episodes/{id}/stream. It upgrades to a
// websocket and pushes every committed step until the client disconnects or
// the episode is deleted.
func (s *Server) handleStreamEpisode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	updates, cancel, err := s.episodes.Subscribe(id)
	if err != nil {
		if errors.Is(err, ErrUnknownEpisode) {
			s.writeError(w, http.StatusNotFound, "episode not found")
			return
		}
		s.log.Error().Err(err).Str("episode_id", id).Msg("Failed to subscribe")
		s.writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("episode_id", id).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()
	s.log.Debug().Str("episode_id", id).Msg("Stream opened")

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case result, ok := <-updates:
			if !ok {
				// Episode deleted; tell the client and stop.
				conn.Close(websocket.StatusNormalClosure, "episode closed")
				return
			}
			if err := wsjson.Write(ctx, conn, result); err != nil {
				s.log.Debug().Err(err).Str("episode_id", id).Msg("Stream write failed")
				return
			}
			if result.Terminal {
				conn.Close(websocket.StatusNormalClosure, "episode terminal")
				return
			}
		}
	}
}
