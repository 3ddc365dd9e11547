package syscall

import (
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

// sysWrite sólo soporta stdout. El buffer se junta página por página desde el espacio del proceso.
func (d *Dispatcher) sysWrite(fd, buf, length uint64) (int64, error) {
	if fd != FdStdout {
		d.Log.Error("Unsupported fd in sys_write!",
			log.IntAttr("pid", d.Tareas.CurrentPID()),
			log.IntAttr("fd", int(fd)),
		)
		return -1, nil
	}

	tramos, err := mm.TranslatedByteBuffer(d.Mem, d.Tareas.CurrentUserToken(), buf, length, mm.AccesoLectura)
	if err != nil {
		return -1, err
	}
	for _, t := range tramos {
		if _, err = d.Consola.Write(t); err != nil {
			d.Log.Error("Error escribiendo en la consola", log.ErrAttr(err))
			return -1, nil
		}
	}
	return int64(length), nil
}
