package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListarProcesos(w http.ResponseWriter, _ *http.Request) {
	h.responderJSON(w, http.StatusOK, h.Kernel.Procesos())
}

func (h *Handler) ObtenerProceso(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil {
		h.responderError(w, http.StatusBadRequest, "pid inválido")
		return
	}

	proceso, ok := h.Kernel.Proceso(pid)
	if !ok {
		h.responderError(w, http.StatusNotFound, fmt.Sprintf("no existe el proceso %d", pid))
		return
	}
	h.responderJSON(w, http.StatusOK, proceso)
}

func (h *Handler) FramesLibres(w http.ResponseWriter, _ *http.Request) {
	h.responderJSON(w, http.StatusOK, map[string]int{"frames_libres": h.Kernel.FramesLibres()})
}
