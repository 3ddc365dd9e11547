package mm

import "fmt"

// MemoriaFisica simula la RAM de la máquina a partir de MemoryBase. El primer frame aloja el trampolín.
type MemoriaFisica struct {
	base  PhysPageNum
	datos []byte
}

func NewMemoriaFisica(frames int) *MemoriaFisica {
	if frames <= 0 {
		panic("la memoria física necesita al menos un frame")
	}
	return &MemoriaFisica{
		base:  NewPhysAddr(MemoryBase).Floor(),
		datos: make([]byte, frames*PageSize),
	}
}

func (m *MemoriaFisica) Base() PhysPageNum {
	return m.base
}

// Fin es el primer PPN fuera de la memoria.
func (m *MemoriaFisica) Fin() PhysPageNum {
	return m.base + PhysPageNum(m.Frames())
}

func (m *MemoriaFisica) Frames() int {
	return len(m.datos) / PageSize
}

func (m *MemoriaFisica) TrampolinePPN() PhysPageNum {
	return m.base
}

// Frame devuelve los bytes del frame. Un PPN fuera de la RAM es un error del kernel.
func (m *MemoriaFisica) Frame(ppn PhysPageNum) []byte {
	if ppn < m.base || ppn >= m.Fin() {
		panic(fmt.Sprintf("PPN %#x fuera de la memoria física", uint64(ppn)))
	}
	offset := int(ppn-m.base) * PageSize
	return m.datos[offset : offset+PageSize : offset+PageSize]
}

func (m *MemoriaFisica) Limpiar(ppn PhysPageNum) {
	clear(m.Frame(ppn))
}
