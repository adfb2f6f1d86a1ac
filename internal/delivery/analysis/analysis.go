package analysis

import (
	"net/http"

	"go.uber.org/zap"

	"chess_review/internal/httpresponse"
	"chess_review/internal/usecase/viewer"
	"chess_review/internal/utils"
)

type BestMoveRequest struct {
	Position string `json:"position"`
	Depth    int    `json:"depth"`
}

type AnalysisHandler struct {
	log    *zap.SugaredLogger
	viewer *viewer.Viewer
}

func NewAnalysisHandler(log *zap.SugaredLogger, v *viewer.Viewer) *AnalysisHandler {
	return &AnalysisHandler{log: log, viewer: v}
}

func (a *AnalysisHandler) HandleBestMove(w http.ResponseWriter, r *http.Request) {
	var req BestMoveRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		a.log.Warnw("bad best move request", "error", err)
		httpresponse.WriteResponseWithStatus(w, http.StatusBadRequest, httpresponse.ErrorResponse{ErrorDescription: err.Error()})
		return
	}

	res, err := a.viewer.RequestBestMove(r.Context(), req.Position, req.Depth)
	if err != nil {
		a.log.Infow("best move request ended", "position", req.Position, "error", err)
		httpresponse.WriteError(w, err)
		return
	}

	httpresponse.WriteResponseWithStatus(w, http.StatusOK, res)
}

func (a *AnalysisHandler) HandleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := a.viewer.ShutdownEngine(); err != nil {
		a.log.Errorw("engine shutdown failed", "error", err)
		httpresponse.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
