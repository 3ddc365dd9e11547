package api

import (
	"encoding/json"
	"net/http"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

// LeerMemoria lee memoria de usuario como el proceso en ejecución. Una violación lo mata y responde 409.
func (h *Handler) LeerMemoria(w http.ResponseWriter, r *http.Request) {
	var body LecturaBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.Log.Error("Error al decodificar la lectura", log.ErrAttr(err))
		h.responderError(w, http.StatusBadRequest, "error al decodificar la lectura")
		return
	}

	datos, res, err := h.Kernel.LeerUsuario(body.Direccion, body.Tamanio)
	if err != nil {
		h.Log.Warn("Lectura rechazada",
			log.HexAttr("direccion", body.Direccion),
			log.ErrAttr(err),
		)
		h.responderAcceso(w, statusDeError(err), nil, respuestaDeTrap(res))
		return
	}

	h.Log.Debug("Lectura de memoria de usuario",
		log.IntAttr("pid", res.PIDActual),
		log.HexAttr("direccion", body.Direccion),
		log.IntAttr("tamanio", len(datos)),
	)
	h.responderAcceso(w, http.StatusOK, datos, respuestaDeTrap(res))
}

func (h *Handler) EscribirMemoria(w http.ResponseWriter, r *http.Request) {
	var body EscrituraBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.Log.Error("Error al decodificar la escritura", log.ErrAttr(err))
		h.responderError(w, http.StatusBadRequest, "error al decodificar la escritura")
		return
	}

	res, err := h.Kernel.EscribirUsuario(body.Direccion, body.Datos)
	if err != nil {
		h.Log.Warn("Escritura rechazada",
			log.HexAttr("direccion", body.Direccion),
			log.ErrAttr(err),
		)
		h.responderAcceso(w, statusDeError(err), nil, respuestaDeTrap(res))
		return
	}

	h.Log.Debug("Escritura en memoria de usuario",
		log.IntAttr("pid", res.PIDActual),
		log.HexAttr("direccion", body.Direccion),
		log.IntAttr("tamanio", len(body.Datos)),
	)
	h.responderAcceso(w, http.StatusOK, nil, respuestaDeTrap(res))
}

func (h *Handler) responderAcceso(w http.ResponseWriter, status int, datos []byte, res TrapRespuesta) {
	h.responderJSON(w, status, AccesoRespuesta{Datos: datos, Resultado: res})
}
