package mm

import "fmt"

const (
	PageSize     = 0x1000
	PageSizeBits = 12

	// SV39
	VABits  = 39
	PABits  = 56
	VPNBits = VABits - PageSizeBits
	PPNBits = PABits - PageSizeBits

	UserStackSize   = 2 * PageSize
	KernelStackSize = 2 * PageSize

	Trampoline  = (uint64(1) << VABits) - PageSize
	TrapContext = Trampoline - PageSize

	MemoryBase = 0x80000000
)

type (
	VirtAddr    uint64
	PhysAddr    uint64
	VirtPageNum uint64
	PhysPageNum uint64
)

// NewVirtAddr trunca la dirección a los 39 bits que entiende SV39.
func NewVirtAddr(v uint64) VirtAddr {
	return VirtAddr(v & ((1 << VABits) - 1))
}

// RangoUsuario devuelve [start, start+length) sólo si ambos extremos caben en los 39 bits de SV39.
func RangoUsuario(start, length uint64) (VirtAddr, VirtAddr, bool) {
	const limite = uint64(1) << VABits
	if start >= limite || length > limite-start {
		return 0, 0, false
	}
	return VirtAddr(start), VirtAddr(start + length), true
}

func NewPhysAddr(v uint64) PhysAddr {
	return PhysAddr(v & ((1 << PABits) - 1))
}

func (va VirtAddr) Floor() VirtPageNum {
	return VirtPageNum(uint64(va) / PageSize)
}

func (va VirtAddr) Ceil() VirtPageNum {
	if va == 0 {
		return 0
	}
	return VirtPageNum((uint64(va) - 1 + PageSize) / PageSize)
}

func (va VirtAddr) PageOffset() uint64 {
	return uint64(va) & (PageSize - 1)
}

func (va VirtAddr) Aligned() bool {
	return va.PageOffset() == 0
}

func (va VirtAddr) String() string {
	return fmt.Sprintf("VA:%#x", uint64(va))
}

func (pa PhysAddr) Floor() PhysPageNum {
	return PhysPageNum(uint64(pa) / PageSize)
}

func (pa PhysAddr) PageOffset() uint64 {
	return uint64(pa) & (PageSize - 1)
}

func (vpn VirtPageNum) Addr() VirtAddr {
	return VirtAddr(uint64(vpn) << PageSizeBits)
}

// Indexes devuelve los índices de cada nivel, empezando por la raíz.
func (vpn VirtPageNum) Indexes() [3]uint64 {
	var idx [3]uint64
	v := uint64(vpn)
	for i := 2; i >= 0; i-- {
		idx[i] = v & 0x1ff
		v >>= 9
	}
	return idx
}

func (ppn PhysPageNum) Addr() PhysAddr {
	return PhysAddr(uint64(ppn) << PageSizeBits)
}

// VPNRange es el rango semiabierto [Inicio, Fin) de páginas virtuales.
type VPNRange struct {
	Inicio VirtPageNum
	Fin    VirtPageNum
}

func NewVPNRange(inicio, fin VirtPageNum) VPNRange {
	if fin < inicio {
		panic(fmt.Sprintf("rango inválido: inicio %#x > fin %#x", inicio, fin))
	}
	return VPNRange{Inicio: inicio, Fin: fin}
}

func (r VPNRange) Len() uint64 {
	return uint64(r.Fin - r.Inicio)
}

func (r VPNRange) Contains(vpn VirtPageNum) bool {
	return vpn >= r.Inicio && vpn < r.Fin
}

func (r VPNRange) Overlaps(otro VPNRange) bool {
	return r.Inicio < otro.Fin && otro.Inicio < r.Fin
}

// Includes indica si otro queda completamente dentro de r.
func (r VPNRange) Includes(otro VPNRange) bool {
	return otro.Inicio >= r.Inicio && otro.Fin <= r.Fin
}

// Pages recorre cada página del rango.
func (r VPNRange) Pages(fn func(vpn VirtPageNum) error) error {
	for vpn := r.Inicio; vpn < r.Fin; vpn++ {
		if err := fn(vpn); err != nil {
			return err
		}
	}
	return nil
}

// KernelStackPosition devuelve [bottom, top) de la pila de kernel de la app, con una página de guarda entre pilas.
func KernelStackPosition(appID int) (VirtAddr, VirtAddr) {
	top := Trampoline - uint64(appID)*(KernelStackSize+PageSize)
	bottom := top - KernelStackSize
	return VirtAddr(bottom), VirtAddr(top)
}
