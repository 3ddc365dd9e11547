package mm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

type PTEFlags uint8

const (
	FlagV PTEFlags = 1 << iota
	FlagR
	FlagW
	FlagX
	FlagU
	FlagG
	FlagA
	FlagD
)

func (f PTEFlags) String() string {
	letras := []struct {
		flag PTEFlags
		c    string
	}{{FlagV, "V"}, {FlagR, "R"}, {FlagW, "W"}, {FlagX, "X"}, {FlagU, "U"}, {FlagG, "G"}, {FlagA, "A"}, {FlagD, "D"}}
	var sb strings.Builder
	for _, l := range letras {
		if f&l.flag != 0 {
			sb.WriteString(l.c)
		} else {
			sb.WriteString("-")
		}
	}
	return sb.String()
}

type PageTableEntry uint64

func NewPageTableEntry(ppn PhysPageNum, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<10 | uint64(flags))
}

func (pte PageTableEntry) PPN() PhysPageNum {
	return PhysPageNum((uint64(pte) >> 10) & ((1 << PPNBits) - 1))
}

func (pte PageTableEntry) Flags() PTEFlags {
	return PTEFlags(pte & 0xff)
}

func (pte PageTableEntry) IsValid() bool    { return pte.Flags()&FlagV != 0 }
func (pte PageTableEntry) Readable() bool   { return pte.Flags()&FlagR != 0 }
func (pte PageTableEntry) Writable() bool   { return pte.Flags()&FlagW != 0 }
func (pte PageTableEntry) Executable() bool { return pte.Flags()&FlagX != 0 }
func (pte PageTableEntry) User() bool       { return pte.Flags()&FlagU != 0 }

const satpModeSV39 = uint64(8) << 60

// PageTable es la tabla de tres niveles de SV39. Las PTEs viven en los frames de la memoria física.
type PageTable struct {
	mem    *MemoriaFisica
	frames *FrameAllocator
	raiz   PhysPageNum
	tablas []*FrameTracker
}

func NewPageTable(frames *FrameAllocator) (*PageTable, error) {
	raiz, err := frames.Alloc()
	if err != nil {
		return nil, fmt.Errorf("frame raíz de la tabla de páginas: %w", err)
	}
	return &PageTable{
		mem:    frames.Memoria(),
		frames: frames,
		raiz:   raiz.PPN,
		tablas: []*FrameTracker{raiz},
	}, nil
}

// FromToken arma una vista de solo lectura a partir de un satp. No puede mapear.
func FromToken(mem *MemoriaFisica, satp uint64) *PageTable {
	return &PageTable{
		mem:  mem,
		raiz: PhysPageNum(satp & ((1 << PPNBits) - 1)),
	}
}

func (pt *PageTable) Token() uint64 {
	return satpModeSV39 | uint64(pt.raiz)
}

func (pt *PageTable) leerPTE(tabla PhysPageNum, idx uint64) PageTableEntry {
	return PageTableEntry(binary.LittleEndian.Uint64(pt.mem.Frame(tabla)[idx*8:]))
}

func (pt *PageTable) escribirPTE(tabla PhysPageNum, idx uint64, pte PageTableEntry) {
	binary.LittleEndian.PutUint64(pt.mem.Frame(tabla)[idx*8:], uint64(pte))
}

// buscarOCrear devuelve la tabla hoja y el índice de la PTE de vpn, creando los niveles intermedios.
func (pt *PageTable) buscarOCrear(vpn VirtPageNum) (PhysPageNum, uint64, error) {
	if pt.frames == nil {
		panic("tabla de páginas de solo lectura")
	}
	idxs := vpn.Indexes()
	tabla := pt.raiz
	for nivel := 0; nivel < 2; nivel++ {
		pte := pt.leerPTE(tabla, idxs[nivel])
		if !pte.IsValid() {
			frame, err := pt.frames.Alloc()
			if err != nil {
				return 0, 0, err
			}
			pt.tablas = append(pt.tablas, frame)
			pte = NewPageTableEntry(frame.PPN, FlagV)
			pt.escribirPTE(tabla, idxs[nivel], pte)
		}
		tabla = pte.PPN()
	}
	return tabla, idxs[2], nil
}

func (pt *PageTable) buscar(vpn VirtPageNum) (PhysPageNum, uint64, bool) {
	idxs := vpn.Indexes()
	tabla := pt.raiz
	for nivel := 0; nivel < 2; nivel++ {
		pte := pt.leerPTE(tabla, idxs[nivel])
		if !pte.IsValid() {
			return 0, 0, false
		}
		tabla = pte.PPN()
	}
	return tabla, idxs[2], true
}

// Map agrega vpn -> ppn. Mapear una página ya mapeada es un error del kernel.
func (pt *PageTable) Map(vpn VirtPageNum, ppn PhysPageNum, flags PTEFlags) error {
	tabla, idx, err := pt.buscarOCrear(vpn)
	if err != nil {
		return err
	}
	if pt.leerPTE(tabla, idx).IsValid() {
		panic(fmt.Sprintf("vpn %#x ya estaba mapeada", uint64(vpn)))
	}
	pt.escribirPTE(tabla, idx, NewPageTableEntry(ppn, flags|FlagV))
	return nil
}

func (pt *PageTable) Unmap(vpn VirtPageNum) {
	tabla, idx, ok := pt.buscar(vpn)
	if !ok || !pt.leerPTE(tabla, idx).IsValid() {
		panic(fmt.Sprintf("vpn %#x no estaba mapeada", uint64(vpn)))
	}
	pt.escribirPTE(tabla, idx, 0)
}

// Translate devuelve la PTE hoja de vpn, si es válida.
func (pt *PageTable) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	tabla, idx, ok := pt.buscar(vpn)
	if !ok {
		return 0, false
	}
	pte := pt.leerPTE(tabla, idx)
	if !pte.IsValid() {
		return 0, false
	}
	return pte, true
}

// Liberar devuelve los frames de las tablas intermedias y la raíz.
func (pt *PageTable) Liberar() {
	for _, t := range pt.tablas {
		t.Liberar()
	}
	pt.tablas = nil
}
