package internal

import (
	"context"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/pkg/kernel"
)

const (
	InstruccionMmap        CodigoInstruccion = "MMAP"
	InstruccionMunmap      CodigoInstruccion = "MUNMAP"
	InstruccionYield       CodigoInstruccion = "YIELD"
	InstruccionExit        CodigoInstruccion = "EXIT"
	InstruccionGetTime     CodigoInstruccion = "GET_TIME"
	InstruccionTaskInfo    CodigoInstruccion = "TASK_INFO"
	InstruccionSetPriority CodigoInstruccion = "SET_PRIORITY"
	InstruccionWrite       CodigoInstruccion = "WRITE"
	InstruccionRead        CodigoInstruccion = "READ"
	InstruccionPrint       CodigoInstruccion = "PRINT"
)

type CodigoInstruccion string

// Cantidad mínima de argumentos de cada instrucción. WRITE junta el resto de la línea como datos.
var aridad = map[CodigoInstruccion]int{
	InstruccionMmap:        3,
	InstruccionMunmap:      2,
	InstruccionYield:       0,
	InstruccionExit:        1,
	InstruccionGetTime:     1,
	InstruccionTaskInfo:    1,
	InstruccionSetPriority: 1,
	InstruccionWrite:       2,
	InstruccionRead:        2,
	InstruccionPrint:       2,
}

type Instruccion struct {
	Linea  int               `json:"linea"`
	Codigo CodigoInstruccion `json:"codigo"`
	Args   []string          `json:"args,omitempty"`
}

// KernelCliente es lo que la CPU necesita del kernel.
type KernelCliente interface {
	EnviarTrap(ctx context.Context, body kernel.TrapBody) (kernel.TrapRespuesta, error)
	Syscall(ctx context.Context, id uint64, args ...uint64) (kernel.TrapRespuesta, error)
	LeerMemoria(ctx context.Context, direccion, tamanio uint64) ([]byte, kernel.TrapRespuesta, error)
	EscribirMemoria(ctx context.Context, direccion uint64, datos []byte) (kernel.TrapRespuesta, error)
}
