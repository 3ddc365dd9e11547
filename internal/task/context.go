package task

import "github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"

// TaskContext guarda ra, sp y los registros s0..s11 con los que se retoma la tarea en el kernel.
type TaskContext struct {
	Ra uint64
	Sp uint64
	S  [12]uint64
}

// GotoTrapReturn arma un contexto que al retomarse vuelve a usuario por trap_return.
func GotoTrapReturn(kstackPtr uint64) TaskContext {
	return TaskContext{
		Ra: trap.DireccionTrapReturn,
		Sp: kstackPtr,
	}
}
