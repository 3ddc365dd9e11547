package syscall

import (
	"fmt"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/timer"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

// sysExit nunca vuelve al proceso que la llama.
func (d *Dispatcher) sysExit(code int) int64 {
	pid := d.Tareas.CurrentPID()
	d.Tareas.ExitCurrentAndRunNext(code)
	if !d.Tareas.Exited(pid) {
		panic("Unreachable in sys_exit!")
	}
	return 0
}

func (d *Dispatcher) sysYield() int64 {
	d.Tareas.SuspendCurrentAndRunNext()
	return 0
}

func (d *Dispatcher) sysGetTime(ts, _ uint64) (int64, error) {
	tv := timer.NewTimeVal(d.Reloj.AhoraMicros())
	datos, err := tv.MarshalBinary()
	if err != nil {
		return -1, err
	}
	if err = mm.EscribirUsuario(d.Mem, d.Tareas.CurrentUserToken(), ts, datos); err != nil {
		return -1, err
	}
	return 0, nil
}

func (d *Dispatcher) sysSetPriority(_ int64) int64 {
	return -1
}

func (d *Dispatcher) sysTaskInfo(ti uint64) (int64, error) {
	datos, err := d.Tareas.CurrentTaskInfo().MarshalBinary()
	if err != nil {
		return -1, err
	}
	if err = mm.EscribirUsuario(d.Mem, d.Tareas.CurrentUserToken(), ti, datos); err != nil {
		return -1, err
	}
	return 0, nil
}

// sysMmap valida todo antes de tocar el espacio del proceso: alineación, permisos y frames disponibles.
func (d *Dispatcher) sysMmap(start, length, port uint64) int64 {
	if start%mm.PageSize != 0 {
		d.Log.Debug("mmap con dirección no alineada", log.HexAttr("start", start))
		return -1
	}
	if port&^0x7 != 0 || port&0x7 == 0 {
		d.Log.Debug("mmap con permisos inválidos", log.HexAttr("port", port))
		return -1
	}

	inicio, fin, ok := mm.RangoUsuario(start, length)
	if !ok {
		d.Log.Debug("mmap fuera del espacio virtual", log.HexAttr("start", start), log.HexAttr("len", length))
		return -1
	}
	paginas := uint64(fin.Ceil() - inicio.Floor())
	if libres := d.Frames.FreeFrameCount(); paginas > uint64(libres) {
		d.Log.Debug(fmt.Sprintf("mmap pide %d páginas y quedan %d frames libres", paginas, libres))
		return -1
	}

	return d.Tareas.CurrentMmap(start, length, port)
}

func (d *Dispatcher) sysMunmap(start, length uint64) int64 {
	if start%mm.PageSize != 0 {
		return -1
	}
	if _, _, ok := mm.RangoUsuario(start, length); !ok {
		return -1
	}
	return d.Tareas.CurrentMunmap(start, length)
}
