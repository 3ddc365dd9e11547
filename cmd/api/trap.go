package api

import (
	"encoding/json"
	"net/http"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/kernel"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/syscall"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

func (h *Handler) RecibirTrap(w http.ResponseWriter, r *http.Request) {
	var body TrapBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.Log.Error("Error al decodificar el trap", log.ErrAttr(err))
		h.responderError(w, http.StatusBadRequest, "error al decodificar el trap")
		return
	}

	causa, err := trap.ParseCausa(body.Causa)
	if err != nil {
		h.Log.Error("Causa de trap desconocida", log.StringAttr("causa", body.Causa))
		h.responderError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Log.Debug("Trap recibido",
		log.StringAttr("causa", causa.String()),
		log.StringAttr("syscall", syscall.Nombre(body.ID)),
		log.HexAttr("stval", body.Stval),
	)

	res, err := h.Kernel.ManejarTrap(kernel.PedidoTrap{
		Causa: causa,
		ID:    body.ID,
		Args:  body.Args,
		Stval: body.Stval,
	})
	if err != nil {
		h.Log.Error("Error manejando el trap", log.ErrAttr(err))
		h.responderError(w, statusDeError(err), err.Error())
		return
	}

	h.responderJSON(w, http.StatusOK, respuestaDeTrap(res))
}
