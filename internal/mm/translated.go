package mm

import (
	"errors"
	"fmt"
)

// ErrFallaDeTraduccion marca un puntero de usuario que no resuelve en el espacio del proceso.
// No es un error recuperable: quien lo recibe mata al proceso.
var ErrFallaDeTraduccion = errors.New("falla de traducción de puntero de usuario")

type Acceso int

const (
	AccesoLectura Acceso = iota
	AccesoEscritura
)

func (a Acceso) String() string {
	if a == AccesoEscritura {
		return "escritura"
	}
	return "lectura"
}

// FallaDeTraduccion indica la dirección exacta que no se pudo traducir.
type FallaDeTraduccion struct {
	VA     uint64
	Acceso Acceso
}

func (f *FallaDeTraduccion) Error() string {
	return fmt.Sprintf("%s: %s en va=%#x", ErrFallaDeTraduccion, f.Acceso, f.VA)
}

func (f *FallaDeTraduccion) Unwrap() error {
	return ErrFallaDeTraduccion
}

// TranslatedByteBuffer devuelve los tramos de memoria física que cubren [ptr, ptr+n) en el espacio
// del token, exigiendo que cada página sea de usuario y tenga el permiso del acceso pedido.
func TranslatedByteBuffer(mem *MemoriaFisica, token, ptr, n uint64, acceso Acceso) ([][]byte, error) {
	fin := ptr + n
	if fin < ptr || fin > 1<<VABits {
		return nil, &FallaDeTraduccion{VA: ptr, Acceso: acceso}
	}

	pt := FromToken(mem, token)
	tramos := make([][]byte, 0, 1)
	for actual := ptr; actual < fin; {
		va := VirtAddr(actual)
		pte, ok := pt.Translate(va.Floor())
		if !ok || !pte.User() || !permite(pte, acceso) {
			return nil, &FallaDeTraduccion{VA: actual, Acceso: acceso}
		}
		hasta := min(fin, uint64((va.Floor() + 1).Addr()))
		off := va.PageOffset()
		tramos = append(tramos, mem.Frame(pte.PPN())[off:off+(hasta-actual)])
		actual = hasta
	}
	return tramos, nil
}

func permite(pte PageTableEntry, acceso Acceso) bool {
	if acceso == AccesoEscritura {
		return pte.Writable()
	}
	return pte.Readable()
}

// EscribirUsuario copia datos a la dirección ptr del espacio del token.
func EscribirUsuario(mem *MemoriaFisica, token, ptr uint64, datos []byte) error {
	tramos, err := TranslatedByteBuffer(mem, token, ptr, uint64(len(datos)), AccesoEscritura)
	if err != nil {
		return err
	}
	for _, t := range tramos {
		n := copy(t, datos)
		datos = datos[n:]
	}
	return nil
}

func LeerUsuario(mem *MemoriaFisica, token, ptr, n uint64) ([]byte, error) {
	tramos, err := TranslatedByteBuffer(mem, token, ptr, n, AccesoLectura)
	if err != nil {
		return nil, err
	}
	datos := make([]byte, 0, n)
	for _, t := range tramos {
		datos = append(datos, t...)
	}
	return datos, nil
}
