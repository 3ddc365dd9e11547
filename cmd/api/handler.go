package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/kernel"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/timer"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/config"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

type Handler struct {
	Log    *slog.Logger
	Config *Config
	Kernel *kernel.Kernel
}

func NewHandler(configFile string) *Handler {
	c := config.IniciarConfiguracion(configFile, &Config{})
	if c == nil {
		panic("Error loading configuration")
	}

	// Cast the configuration to the specific type
	configStruct, ok := c.(*Config)
	if !ok {
		panic("Error casting configuration")
	}

	logger := log.BuildLogger(configStruct.LogLevel)

	k, err := kernel.New(logger, configStruct.MemoryFrames, configStruct.KernelFrames,
		timer.NewRelojMonotonico(), os.Stdout)
	if err != nil {
		logger.Error("Error inicializando el kernel", log.ErrAttr(err))
		panic(err)
	}

	return &Handler{
		Config: configStruct,
		Log:    logger,
		Kernel: k,
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	// CPU --> Kernel
	r.Post("/cpu/trap", h.RecibirTrap)
	r.Post("/cpu/memoria/lectura", h.LeerMemoria)
	r.Post("/cpu/memoria/escritura", h.EscribirMemoria)

	// Diagnóstico
	r.Get("/kernel/procesos", h.ListarProcesos)
	r.Get("/kernel/procesos/{pid}", h.ObtenerProceso)
	r.Get("/kernel/frames-libres", h.FramesLibres)

	return r
}

func statusDeError(err error) int {
	switch {
	case errors.Is(err, kernel.ErrAccesoInvalido):
		return http.StatusConflict
	case errors.Is(err, trap.ErrSinProcesoEnEjecucion):
		return http.StatusGone
	case errors.Is(err, kernel.ErrNoIniciado):
		return http.StatusServiceUnavailable
	case errors.Is(err, trap.ErrCausaNoSoportada):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) responderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.Error("Error codificando respuesta", log.ErrAttr(err))
	}
}

func (h *Handler) responderError(w http.ResponseWriter, status int, mensaje string) {
	h.responderJSON(w, status, ErrorRespuesta{Mensaje: mensaje})
}

func respuestaDeTrap(r trap.Resultado) TrapRespuesta {
	return TrapRespuesta{
		PIDAnterior: r.PIDAnterior,
		PIDActual:   r.PIDActual,
		Ret:         r.Ret,
		Terminado:   r.Terminado,
	}
}
