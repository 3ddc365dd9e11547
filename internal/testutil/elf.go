// Package testutil arma imágenes ELF mínimas para cargar aplicaciones en las pruebas.
package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Segmento es un PT_LOAD de la imagen.
type Segmento struct {
	Vaddr uint64
	Datos []byte
	Memsz uint64
	Flags elf.ProgFlag
}

const (
	tamHeader   = 64
	tamProgHdr  = 56
	alineacion  = 0x1000
	inicioDatos = 0x1000
)

// ConstruirELF arma un ELF64 RISC-V ejecutable sin tabla de secciones.
func ConstruirELF(entry uint64, segmentos ...Segmento) []byte {
	return ConstruirELFConMaquina(elf.EM_RISCV, entry, segmentos...)
}

func ConstruirELFConMaquina(maquina elf.Machine, entry uint64, segmentos ...Segmento) []byte {
	var buf bytes.Buffer

	h := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(maquina),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     tamHeader,
		Ehsize:    tamHeader,
		Phentsize: tamProgHdr,
		Phnum:     uint16(len(segmentos)),
	}
	copy(h.Ident[:], elf.ELFMAG)
	h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	h.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	_ = binary.Write(&buf, binary.LittleEndian, h)

	offset := uint64(inicioDatos)
	for _, s := range segmentos {
		memsz := s.Memsz
		if memsz < uint64(len(s.Datos)) {
			memsz = uint64(len(s.Datos))
		}
		p := elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(s.Flags),
			Off:    offset,
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint64(len(s.Datos)),
			Memsz:  memsz,
			Align:  alineacion,
		}
		_ = binary.Write(&buf, binary.LittleEndian, p)
		offset += uint64(len(s.Datos))
	}

	relleno := make([]byte, inicioDatos-buf.Len())
	buf.Write(relleno)
	for _, s := range segmentos {
		buf.Write(s.Datos)
	}
	return buf.Bytes()
}

// AppSimple es una aplicación con un segmento de código R|X en 0x400000.
func AppSimple() []byte {
	return ConstruirELF(0x400000, Segmento{
		Vaddr: 0x400000,
		Datos: []byte{0x13, 0x00, 0x00, 0x00, 0x73, 0x00, 0x00, 0x00},
		Flags: elf.PF_R | elf.PF_X,
	})
}
