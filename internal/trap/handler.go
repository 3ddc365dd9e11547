package trap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

var (
	ErrCausaNoSoportada      = errors.New("causa de trap no soportada")
	ErrSinProcesoEnEjecucion = errors.New("no hay proceso en ejecución")
	ErrSyscallNoSoportada    = errors.New("syscall no soportada")
)

// Códigos de salida de un proceso que el kernel mata.
const (
	CodigoFallaDeMemoria    = -2
	CodigoInstruccionIlegal = -3
)

// Tareas es lo que el manejador necesita del planificador.
type Tareas interface {
	CurrentPID() int
	CurrentTrapMarco() Marco
	IncreaseSyscallTimes(id uint64)
	Exited(pid int) bool
	SuspendCurrentAndRunNext()
	ExitCurrentAndRunNext(code int)
}

type Syscalls interface {
	Syscall(id uint64, args [3]uint64) (int64, error)
}

// Trap es una entrada al kernel desde el proceso en ejecución.
type Trap struct {
	Causa Causa
	Stval uint64
}

type Resultado struct {
	PIDAnterior int
	PIDActual   int
	Ret         int64
	Terminado   bool
}

type Handler struct {
	Log      *slog.Logger
	Tareas   Tareas
	Syscalls Syscalls
}

func NewHandler(logger *slog.Logger, tareas Tareas, syscalls Syscalls) *Handler {
	return &Handler{
		Log:      logger,
		Tareas:   tareas,
		Syscalls: syscalls,
	}
}

// Manejar atiende un trap del proceso en ejecución. El resultado de una syscall se guarda en a0 del
// proceso que la invocó, salvo que haya terminado.
func (h *Handler) Manejar(t Trap) (Resultado, error) {
	pid := h.Tareas.CurrentPID()
	if pid < 0 {
		return Resultado{PIDAnterior: -1, PIDActual: -1}, ErrSinProcesoEnEjecucion
	}
	if cx := h.Tareas.CurrentTrapMarco().Leer(); !cx.EsUsuario() {
		panic(fmt.Sprintf("a trap from kernel! sepc = %#x", cx.Sepc))
	}
	res := Resultado{PIDAnterior: pid}

	switch {
	case t.Causa == CausaUserEnvCall:
		res.Ret = h.syscall(pid)
	case t.Causa.EsFallaDeMemoria():
		cx := h.Tareas.CurrentTrapMarco().Leer()
		h.Log.Error(fmt.Sprintf("[kernel] %s in application, bad addr = %#x, bad instruction = %#x, kernel killed it.",
			t.Causa, t.Stval, cx.Sepc),
			log.IntAttr("pid", pid),
		)
		h.Tareas.ExitCurrentAndRunNext(CodigoFallaDeMemoria)
	case t.Causa == CausaIllegalInstruction:
		h.Log.Error("[kernel] IllegalInstruction in application, kernel killed it.",
			log.IntAttr("pid", pid),
		)
		h.Tareas.ExitCurrentAndRunNext(CodigoInstruccionIlegal)
	case t.Causa == CausaSupervisorTimer:
		h.Tareas.SuspendCurrentAndRunNext()
	default:
		return res, fmt.Errorf("%w: %s, stval = %#x", ErrCausaNoSoportada, t.Causa, t.Stval)
	}

	res.PIDActual = h.Tareas.CurrentPID()
	res.Terminado = h.Tareas.Exited(pid)
	return res, nil
}

func (h *Handler) syscall(pid int) int64 {
	marco := h.Tareas.CurrentTrapMarco()
	cx := marco.Leer()
	cx.Sepc += 4
	marco.Escribir(cx)

	id := cx.X[RegA7]
	h.Tareas.IncreaseSyscallTimes(id)

	ret, err := h.Syscalls.Syscall(id, [3]uint64{cx.X[RegA0], cx.X[RegA1], cx.X[RegA2]})
	if err != nil {
		h.matarPorSyscall(pid, id, cx.Sepc-4, err)
		return ret
	}

	if !h.Tareas.Exited(pid) {
		cx = marco.Leer()
		cx.X[RegA0] = uint64(ret)
		marco.Escribir(cx)
	}
	return ret
}

// Una syscall que devuelve error no es un -1: el proceso no puede seguir.
func (h *Handler) matarPorSyscall(pid int, id, sepc uint64, err error) {
	var falla *mm.FallaDeTraduccion
	if errors.As(err, &falla) {
		causa := CausaLoadPageFault
		if falla.Acceso == mm.AccesoEscritura {
			causa = CausaStorePageFault
		}
		h.Log.Error(fmt.Sprintf("[kernel] %s in application, bad addr = %#x, bad instruction = %#x, kernel killed it.",
			causa, falla.VA, sepc),
			log.IntAttr("pid", pid),
			log.IntAttr("syscall", int(id)),
		)
		h.Tareas.ExitCurrentAndRunNext(CodigoFallaDeMemoria)
		return
	}

	h.Log.Error("[kernel] Syscall inválida, kernel killed it.",
		log.IntAttr("pid", pid),
		log.IntAttr("syscall", int(id)),
		log.ErrAttr(err),
	)
	h.Tareas.ExitCurrentAndRunNext(CodigoInstruccionIlegal)
}
