// Package syscall despacha las llamadas al sistema del proceso en ejecución.
//
// Las fallas de validación se devuelven como -1. Un puntero de usuario que no traduce se devuelve
// como error (envuelve mm.ErrFallaDeTraduccion) y el manejador de traps mata al proceso.
package syscall

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/task"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/timer"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

const (
	SyscallWrite       = 64
	SyscallExit        = 93
	SyscallYield       = 124
	SyscallSetPriority = 140
	SyscallGetTime     = 169
	SyscallMunmap      = 215
	SyscallMmap        = 222
	SyscallTaskInfo    = 410
)

const FdStdout = 1

var nombres = map[uint64]string{
	SyscallWrite:       "write",
	SyscallExit:        "exit",
	SyscallYield:       "yield",
	SyscallSetPriority: "set_priority",
	SyscallGetTime:     "get_time",
	SyscallMunmap:      "munmap",
	SyscallMmap:        "mmap",
	SyscallTaskInfo:    "task_info",
}

// Nombre devuelve el nombre de la syscall o "" si no existe.
func Nombre(id uint64) string {
	return nombres[id]
}

// Tareas es lo que las syscalls necesitan del planificador.
type Tareas interface {
	CurrentPID() int
	CurrentUserToken() uint64
	CurrentTaskInfo() task.TaskInfo
	CurrentMmap(start, length, port uint64) int64
	CurrentMunmap(start, length uint64) int64
	Exited(pid int) bool
	SuspendCurrentAndRunNext()
	ExitCurrentAndRunNext(code int)
}

type ContadorFrames interface {
	FreeFrameCount() int
}

type Dispatcher struct {
	Log     *slog.Logger
	Tareas  Tareas
	Frames  ContadorFrames
	Mem     *mm.MemoriaFisica
	Reloj   timer.Reloj
	Consola io.Writer
}

func NewDispatcher(logger *slog.Logger, tareas Tareas, frames ContadorFrames, mem *mm.MemoriaFisica,
	reloj timer.Reloj, consola io.Writer) *Dispatcher {
	return &Dispatcher{
		Log:     logger,
		Tareas:  tareas,
		Frames:  frames,
		Mem:     mem,
		Reloj:   reloj,
		Consola: consola,
	}
}

func (d *Dispatcher) Syscall(id uint64, args [3]uint64) (int64, error) {
	d.Log.Debug("Syscall recibida",
		log.IntAttr("pid", d.Tareas.CurrentPID()),
		log.StringAttr("syscall", Nombre(id)),
		log.AnyAttr("args", args),
	)

	switch id {
	case SyscallWrite:
		return d.sysWrite(args[0], args[1], args[2])
	case SyscallExit:
		return d.sysExit(int(int32(args[0]))), nil
	case SyscallYield:
		return d.sysYield(), nil
	case SyscallSetPriority:
		return d.sysSetPriority(int64(args[0])), nil
	case SyscallGetTime:
		return d.sysGetTime(args[0], args[1])
	case SyscallMunmap:
		return d.sysMunmap(args[0], args[1]), nil
	case SyscallMmap:
		return d.sysMmap(args[0], args[1], args[2]), nil
	case SyscallTaskInfo:
		return d.sysTaskInfo(args[0])
	}
	return -1, fmt.Errorf("%w: id %d", trap.ErrSyscallNoSoportada, id)
}
