package mm

type MapType int

const (
	MapIdentical MapType = iota
	MapFramed
)

type MapPermission uint8

const (
	PermR MapPermission = 1 << 1
	PermW MapPermission = 1 << 2
	PermX MapPermission = 1 << 3
	PermU MapPermission = 1 << 4
)

func (p MapPermission) String() string {
	return PTEFlags(p).String()[1:5]
}

// MapArea es un rango contiguo de páginas con el mismo tipo de mapeo y permisos.
type MapArea struct {
	Rango  VPNRange
	Tipo   MapType
	Perm   MapPermission
	frames map[VirtPageNum]*FrameTracker
}

func NewMapArea(inicio, fin VirtAddr, tipo MapType, perm MapPermission) *MapArea {
	return &MapArea{
		Rango:  NewVPNRange(inicio.Floor(), fin.Ceil()),
		Tipo:   tipo,
		Perm:   perm,
		frames: make(map[VirtPageNum]*FrameTracker),
	}
}

func (a *MapArea) mapOne(pt *PageTable, vpn VirtPageNum) error {
	var ppn PhysPageNum
	switch a.Tipo {
	case MapIdentical:
		ppn = PhysPageNum(vpn)
	case MapFramed:
		frame, err := pt.frames.Alloc()
		if err != nil {
			return err
		}
		ppn = frame.PPN
		a.frames[vpn] = frame
	}

	if err := pt.Map(vpn, ppn, PTEFlags(a.Perm)); err != nil {
		if frame, ok := a.frames[vpn]; ok {
			frame.Liberar()
			delete(a.frames, vpn)
		}
		return err
	}
	return nil
}

func (a *MapArea) unmapOne(pt *PageTable, vpn VirtPageNum) {
	if frame, ok := a.frames[vpn]; ok {
		frame.Liberar()
		delete(a.frames, vpn)
	}
	pt.Unmap(vpn)
}

// Map mapea todo el rango. Si falla a mitad de camino deshace lo que alcanzó a mapear.
func (a *MapArea) Map(pt *PageTable) error {
	for vpn := a.Rango.Inicio; vpn < a.Rango.Fin; vpn++ {
		if err := a.mapOne(pt, vpn); err != nil {
			for v := a.Rango.Inicio; v < vpn; v++ {
				a.unmapOne(pt, v)
			}
			return err
		}
	}
	return nil
}

func (a *MapArea) Unmap(pt *PageTable) {
	for vpn := a.Rango.Inicio; vpn < a.Rango.Fin; vpn++ {
		a.unmapOne(pt, vpn)
	}
}

// CopyData copia data al área a partir de offset bytes del inicio de su primera página.
func (a *MapArea) CopyData(pt *PageTable, data []byte, offset uint64) {
	if a.Tipo != MapFramed {
		panic("solo se copian datos a áreas con frames propios")
	}
	vpn := a.Rango.Inicio
	for len(data) > 0 {
		pte, ok := pt.Translate(vpn)
		if !ok {
			panic("copia de datos sobre una página sin mapear")
		}
		dst := pt.mem.Frame(pte.PPN())[offset:]
		n := copy(dst, data)
		data = data[n:]
		offset = 0
		vpn++
	}
}

// recortar desmapea r, que debe estar incluido en el área. Si r queda en el medio
// el área se parte en dos y se devuelve la cola.
func (a *MapArea) recortar(pt *PageTable, r VPNRange) *MapArea {
	for vpn := r.Inicio; vpn < r.Fin; vpn++ {
		a.unmapOne(pt, vpn)
	}

	switch {
	case r == a.Rango:
		a.Rango = VPNRange{Inicio: r.Inicio, Fin: r.Inicio}
	case r.Inicio == a.Rango.Inicio:
		a.Rango.Inicio = r.Fin
	case r.Fin == a.Rango.Fin:
		a.Rango.Fin = r.Inicio
	default:
		cola := &MapArea{
			Rango:  VPNRange{Inicio: r.Fin, Fin: a.Rango.Fin},
			Tipo:   a.Tipo,
			Perm:   a.Perm,
			frames: make(map[VirtPageNum]*FrameTracker),
		}
		for vpn, frame := range a.frames {
			if vpn >= r.Fin {
				cola.frames[vpn] = frame
				delete(a.frames, vpn)
			}
		}
		a.Rango.Fin = r.Inicio
		return cola
	}
	return nil
}
