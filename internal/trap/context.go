package trap

import (
	"bytes"
	"encoding/binary"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
)

// Rutinas del kernel dentro de su imagen (mapeada en identidad).
const (
	DireccionTrapHandler = mm.MemoryBase + 0x1000
	DireccionTrapReturn  = mm.MemoryBase + 0x1400
)

// SstatusSPP en cero indica que el sret vuelve a modo usuario.
const SstatusSPP = uint64(1) << 8

// Registros con nombre dentro de X.
const (
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
)

// TrapContext es el estado del usuario que se guarda en la página de contexto al entrar al kernel.
type TrapContext struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSp    uint64
	TrapHandler uint64
}

// TamTrapContext es lo que ocupa en la página: 37 palabras.
var TamTrapContext = binary.Size(TrapContext{})

func AppInitContext(entry, sp, kernelSatp, kernelSp, trapHandler uint64) TrapContext {
	cx := TrapContext{
		Sstatus:     0,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSp:    kernelSp,
		TrapHandler: trapHandler,
	}
	cx.X[RegSP] = sp
	return cx
}

func (cx *TrapContext) EsUsuario() bool {
	return cx.Sstatus&SstatusSPP == 0
}

// Marco es la ubicación física del contexto de trap de un proceso.
type Marco struct {
	mem *mm.MemoriaFisica
	ppn mm.PhysPageNum
}

func NewMarco(mem *mm.MemoriaFisica, ppn mm.PhysPageNum) Marco {
	return Marco{mem: mem, ppn: ppn}
}

func (m Marco) Leer() TrapContext {
	var cx TrapContext
	if err := binary.Read(bytes.NewReader(m.mem.Frame(m.ppn)), binary.LittleEndian, &cx); err != nil {
		panic(err)
	}
	return cx
}

func (m Marco) Escribir(cx TrapContext) {
	var buf bytes.Buffer
	buf.Grow(TamTrapContext)
	if err := binary.Write(&buf, binary.LittleEndian, &cx); err != nil {
		panic(err)
	}
	copy(m.mem.Frame(m.ppn), buf.Bytes())
}
