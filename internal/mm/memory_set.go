package mm

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"slices"
)

var ErrELFInvalido = errors.New("imagen ELF inválida")

// MemorySet es el espacio de direcciones de un proceso (o del kernel): su tabla de páginas y sus áreas.
type MemorySet struct {
	pt     *PageTable
	frames *FrameAllocator
	areas  []*MapArea
}

func NewBareMemorySet(frames *FrameAllocator) (*MemorySet, error) {
	pt, err := NewPageTable(frames)
	if err != nil {
		return nil, err
	}
	return &MemorySet{
		pt:     pt,
		frames: frames,
		areas:  make([]*MapArea, 0),
	}, nil
}

func (ms *MemorySet) Token() uint64 {
	return ms.pt.Token()
}

func (ms *MemorySet) PageTable() *PageTable {
	return ms.pt
}

func (ms *MemorySet) push(area *MapArea, data []byte, offset uint64) error {
	if err := area.Map(ms.pt); err != nil {
		return err
	}
	if data != nil {
		area.CopyData(ms.pt, data, offset)
	}
	ms.areas = append(ms.areas, area)
	return nil
}

// El trampolín no pertenece a ningún área: comparte el mismo frame en todos los espacios.
func (ms *MemorySet) mapTrampoline() error {
	return ms.pt.Map(VirtAddr(Trampoline).Floor(), ms.frames.Memoria().TrampolinePPN(), FlagR|FlagX)
}

// InsertFramedArea mapea [inicio, fin) con frames nuevos. Si no alcanzan los frames no queda nada mapeado.
func (ms *MemorySet) InsertFramedArea(inicio, fin VirtAddr, perm MapPermission) error {
	return ms.push(NewMapArea(inicio, fin, MapFramed, perm), nil, 0)
}

// IsOverlapped indica si alguna página de [inicio, fin) ya está ocupada, incluido el trampolín.
func (ms *MemorySet) IsOverlapped(inicio, fin VirtAddr) bool {
	r := NewVPNRange(inicio.Floor(), fin.Ceil())
	if r.Len() == 0 {
		return false
	}
	if r.Contains(VirtAddr(Trampoline).Floor()) {
		return true
	}
	for _, a := range ms.areas {
		if a.Rango.Overlaps(r) {
			return true
		}
	}
	return false
}

// RemoveFramedArea desmapea [inicio, fin) sólo si está entero dentro de un área de usuario con frames propios.
func (ms *MemorySet) RemoveFramedArea(inicio, fin VirtAddr) bool {
	r := NewVPNRange(inicio.Floor(), fin.Ceil())
	if r.Len() == 0 {
		return false
	}
	for i, a := range ms.areas {
		if a.Tipo != MapFramed || a.Perm&PermU == 0 || !a.Rango.Includes(r) {
			continue
		}
		cola := a.recortar(ms.pt, r)
		if a.Rango.Len() == 0 {
			ms.areas = slices.Delete(ms.areas, i, i+1)
		} else if cola != nil {
			ms.areas = slices.Insert(ms.areas, i+1, cola)
		}
		return true
	}
	return false
}

func (ms *MemorySet) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	return ms.pt.Translate(vpn)
}

// Region describe un área para diagnóstico.
type Region struct {
	Inicio uint64 `json:"inicio"`
	Fin    uint64 `json:"fin"`
	Perm   string `json:"perm"`
	Frames int    `json:"frames"`
}

func (ms *MemorySet) Regiones() []Region {
	regiones := make([]Region, 0, len(ms.areas))
	for _, a := range ms.areas {
		regiones = append(regiones, Region{
			Inicio: uint64(a.Rango.Inicio.Addr()),
			Fin:    uint64(a.Rango.Fin.Addr()),
			Perm:   a.Perm.String(),
			Frames: len(a.frames),
		})
	}
	return regiones
}

// Liberar devuelve al allocator los frames de todas las áreas y de la tabla de páginas.
func (ms *MemorySet) Liberar() {
	for _, a := range ms.areas {
		a.Unmap(ms.pt)
	}
	ms.areas = nil
	ms.pt.Liberar()
}

// NewKernelMemorySet mapea la imagen del kernel y el resto de la RAM en identidad, más el trampolín.
func NewKernelMemorySet(frames *FrameAllocator, kernelFrames int) (*MemorySet, error) {
	ms, err := NewBareMemorySet(frames)
	if err != nil {
		return nil, err
	}
	if err = ms.mapTrampoline(); err != nil {
		return nil, err
	}

	mem := frames.Memoria()
	finKernel := mem.Base() + PhysPageNum(kernelFrames)
	err = ms.push(NewMapArea(VirtAddr(mem.Base().Addr()), VirtAddr(finKernel.Addr()), MapIdentical, PermR|PermW|PermX), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("mapeando la imagen del kernel: %w", err)
	}
	err = ms.push(NewMapArea(VirtAddr(finKernel.Addr()), VirtAddr(mem.Fin().Addr()), MapIdentical, PermR|PermW), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("mapeando la memoria física: %w", err)
	}
	return ms, nil
}

// FromELF arma el espacio de una aplicación: segmentos PT_LOAD, página de guarda, pila de usuario,
// contexto de trap y trampolín. Devuelve el tope de la pila de usuario y el entry point.
func FromELF(frames *FrameAllocator, data []byte) (*MemorySet, uint64, uint64, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrELFInvalido, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return nil, 0, 0, fmt.Errorf("%w: se esperaba ELF64 RISC-V, se recibió %s %s", ErrELFInvalido, f.Class, f.Machine)
	}

	ms, err := NewBareMemorySet(frames)
	if err != nil {
		return nil, 0, 0, err
	}
	userSP, err := ms.cargarSegmentos(f)
	if err != nil {
		ms.Liberar()
		return nil, 0, 0, err
	}
	return ms, userSP, f.Entry, nil
}

func (ms *MemorySet) cargarSegmentos(f *elf.File) (uint64, error) {
	if err := ms.mapTrampoline(); err != nil {
		return 0, err
	}

	var finSegmentos VirtPageNum
	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		if ph.Filesz > ph.Memsz {
			return 0, fmt.Errorf("%w: segmento en %#x con filesz > memsz", ErrELFInvalido, ph.Vaddr)
		}

		inicio := NewVirtAddr(ph.Vaddr)
		fin := NewVirtAddr(ph.Vaddr + ph.Memsz)
		if fin < inicio || ms.IsOverlapped(inicio, fin) {
			return 0, fmt.Errorf("%w: segmento en %#x fuera de rango o solapado", ErrELFInvalido, ph.Vaddr)
		}

		perm := PermU
		if ph.Flags&elf.PF_R != 0 {
			perm |= PermR
		}
		if ph.Flags&elf.PF_W != 0 {
			perm |= PermW
		}
		if ph.Flags&elf.PF_X != 0 {
			perm |= PermX
		}

		datos := make([]byte, ph.Filesz)
		if _, err := io.ReadFull(ph.Open(), datos); err != nil {
			return 0, fmt.Errorf("%w: leyendo segmento en %#x: %w", ErrELFInvalido, ph.Vaddr, err)
		}

		area := NewMapArea(inicio, fin, MapFramed, perm)
		if err := ms.push(area, datos, inicio.PageOffset()); err != nil {
			return 0, err
		}
		finSegmentos = max(finSegmentos, area.Rango.Fin)
	}

	// página de guarda entre el último segmento y la pila
	pilaInicio := VirtAddr(uint64(finSegmentos.Addr()) + PageSize)
	pilaFin := VirtAddr(uint64(pilaInicio) + UserStackSize)
	if err := ms.push(NewMapArea(pilaInicio, pilaFin, MapFramed, PermR|PermW|PermU), nil, 0); err != nil {
		return 0, err
	}
	if err := ms.push(NewMapArea(VirtAddr(TrapContext), VirtAddr(Trampoline), MapFramed, PermR|PermW), nil, 0); err != nil {
		return 0, err
	}
	return uint64(pilaFin), nil
}
