package review

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess_review/internal/domain/review"
	ownErrors "chess_review/internal/errors"
	"chess_review/internal/httpresponse"
	"chess_review/internal/usecase/gamereview"
	"chess_review/internal/usecase/viewer"
	"chess_review/internal/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type StartResponse struct {
	ReviewID string `json:"review_id"`
	Total    int    `json:"total"`
}

type StatusResponse struct {
	State    review.State           `json:"state"`
	Progress *review.ReviewProgress `json:"progress,omitempty"`
}

// ClientMessage is what a viewer sends over the websocket.
type ClientMessage struct {
	Type string `json:"type"`

	Position string `json:"position,omitempty"`
	Depth    int    `json:"depth,omitempty"`

	PGN             string   `json:"pgn,omitempty"`
	InitialPosition string   `json:"initial_position,omitempty"`
	Moves           []string `json:"moves,omitempty"`
}

const (
	MessageBestMove     = "bestmove"
	MessageReview       = "review"
	MessageCancelReview = "cancel-review"
)

type ReviewHandler struct {
	log    *zap.SugaredLogger
	viewer *viewer.Viewer
}

func NewReviewHandler(log *zap.SugaredLogger, v *viewer.Viewer) *ReviewHandler {
	return &ReviewHandler{log: log, viewer: v}
}

func (h *ReviewHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var in viewer.ReviewInput
	if err := utils.DecodeJSONRequest(r, &in); err != nil {
		h.log.Warnw("bad review request", "error", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	run, err := h.viewer.RequestGameReview(in)
	if err != nil {
		h.log.Infow("review not started", "error", err)
		httpresponse.WriteError(w, err)
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusAccepted, StartResponse{ReviewID: run.ID, Total: run.Total})
}

func (h *ReviewHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.viewer.Review()
	if err != nil {
		httpresponse.WriteError(w, err)
		return
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, viewer.ReviewPayload{
		Review: res,
		Chart:  gamereview.ChartPoints(res),
	})
}

func (h *ReviewHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.viewer.CancelReview()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReviewHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: h.viewer.ReviewState()}
	if p, ok := h.viewer.ReviewProgress(); ok {
		resp.Progress = &p
	}
	httpresponse.WriteResponseWithStatus(w, http.StatusOK, resp)
}

type session struct {
	id   string
	conn *websocket.Conn
	log  *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

func (s *session) send(ev viewer.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := s.conn.WriteJSON(ev); err != nil {
		s.log.Warnw("websocket write failed", "session", s.id, "type", ev.Type, "error", err)
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	_ = s.conn.Close()
}

// HandleStream upgrades to a websocket carrying best-move queries and review
// runs as typed events.
func (h *ReviewHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("upgrade error", "error", err)
		return
	}

	s := &session{id: uuid.New().String(), conn: conn, log: h.log}
	h.log.Infow("viewer connected", "session", s.id)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		s.close()
		wg.Wait()
		h.log.Infow("viewer disconnected", "session", s.id)
	}()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warnw("websocket read error", "session", s.id, "error", err)
			}
			return
		}

		switch msg.Type {
		case MessageBestMove:
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.streamBestMove(ctx, s, msg)
			}()
		case MessageReview:
			run, err := h.viewer.RequestGameReview(viewer.ReviewInput{
				PGN:             msg.PGN,
				InitialPosition: msg.InitialPosition,
				Moves:           msg.Moves,
				Depth:           msg.Depth,
			})
			if err != nil {
				s.send(viewer.Event{Type: viewer.EventError, Data: err.Error()})
				continue
			}
			// outlives the connection; sends after close are dropped
			go h.viewer.ReviewEvents(run, s.send)
		case MessageCancelReview:
			h.viewer.CancelReview()
		default:
			s.send(viewer.Event{Type: viewer.EventError, Data: "unknown message type " + msg.Type})
		}
	}
}

func (h *ReviewHandler) streamBestMove(ctx context.Context, s *session, msg ClientMessage) {
	res, err := h.viewer.RequestBestMove(ctx, msg.Position, msg.Depth)
	switch {
	case err == nil:
		s.send(viewer.Event{Type: viewer.EventBestMove, Data: res})
	case errors.Is(err, ownErrors.ErrRequestSuperseded), errors.Is(err, context.Canceled):
		// the viewer asked about another position already
	default:
		s.send(viewer.Event{Type: viewer.EventError, Data: err.Error()})
	}
}
