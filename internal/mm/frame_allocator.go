package mm

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var ErrSinFrames = errors.New("no quedan frames libres")

// FrameAllocator entrega frames de [actual, fin) y reutiliza los devueltos antes de avanzar.
type FrameAllocator struct {
	mu         sync.Mutex
	mem        *MemoriaFisica
	actual     PhysPageNum
	fin        PhysPageNum
	reciclados []PhysPageNum
}

func NewFrameAllocator(mem *MemoriaFisica, inicio, fin PhysPageNum) *FrameAllocator {
	if inicio < mem.Base() || fin > mem.Fin() || inicio > fin {
		panic(fmt.Sprintf("rango de frames inválido [%#x, %#x)", uint64(inicio), uint64(fin)))
	}
	return &FrameAllocator{
		mem:        mem,
		actual:     inicio,
		fin:        fin,
		reciclados: make([]PhysPageNum, 0),
	}
}

// FrameTracker es el dueño de un frame; al liberarlo vuelve al allocator.
type FrameTracker struct {
	PPN      PhysPageNum
	alloc    *FrameAllocator
	liberado bool
}

func (f *FrameTracker) Liberar() {
	if f.liberado {
		return
	}
	f.liberado = true
	f.alloc.dealloc(f.PPN)
}

// Alloc entrega un frame en cero.
func (a *FrameAllocator) Alloc() (*FrameTracker, error) {
	a.mu.Lock()
	var ppn PhysPageNum
	switch {
	case len(a.reciclados) > 0:
		ppn = a.reciclados[len(a.reciclados)-1]
		a.reciclados = a.reciclados[:len(a.reciclados)-1]
	case a.actual < a.fin:
		ppn = a.actual
		a.actual++
	default:
		a.mu.Unlock()
		return nil, ErrSinFrames
	}
	a.mu.Unlock()

	a.mem.Limpiar(ppn)
	return &FrameTracker{PPN: ppn, alloc: a}, nil
}

func (a *FrameAllocator) dealloc(ppn PhysPageNum) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ppn >= a.actual || slices.Contains(a.reciclados, ppn) {
		panic(fmt.Sprintf("frame ppn=%#x no fue asignado", uint64(ppn)))
	}
	a.reciclados = append(a.reciclados, ppn)
}

func (a *FrameAllocator) FreeFrameCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return int(a.fin-a.actual) + len(a.reciclados)
}

func (a *FrameAllocator) Memoria() *MemoriaFisica {
	return a.mem
}
