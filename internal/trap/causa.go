package trap

import "fmt"

// Causa replica los códigos de scause que el kernel atiende.
type Causa int

const (
	CausaUserEnvCall Causa = iota
	CausaStoreFault
	CausaStorePageFault
	CausaLoadFault
	CausaLoadPageFault
	CausaInstructionFault
	CausaInstructionPageFault
	CausaIllegalInstruction
	CausaSupervisorTimer
)

var nombresCausa = map[Causa]string{
	CausaUserEnvCall:          "UserEnvCall",
	CausaStoreFault:           "StoreFault",
	CausaStorePageFault:       "StorePageFault",
	CausaLoadFault:            "LoadFault",
	CausaLoadPageFault:        "LoadPageFault",
	CausaInstructionFault:     "InstructionFault",
	CausaInstructionPageFault: "InstructionPageFault",
	CausaIllegalInstruction:   "IllegalInstruction",
	CausaSupervisorTimer:      "SupervisorTimer",
}

func (c Causa) String() string {
	if n, ok := nombresCausa[c]; ok {
		return n
	}
	return fmt.Sprintf("Causa(%d)", int(c))
}

// ParseCausa acepta el nombre de la causa tal como viaja en la API.
func ParseCausa(nombre string) (Causa, error) {
	for c, n := range nombresCausa {
		if n == nombre {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrCausaNoSoportada, nombre)
}

func (c Causa) EsFallaDeMemoria() bool {
	switch c {
	case CausaStoreFault, CausaStorePageFault, CausaLoadFault, CausaLoadPageFault,
		CausaInstructionFault, CausaInstructionPageFault:
		return true
	}
	return false
}
