package api

type Config struct {
	IpKernel     string `json:"ip_kernel"`
	PortKernel   int    `json:"port_kernel"`
	MemoryFrames int    `json:"memory_frames"`
	KernelFrames int    `json:"kernel_frames"`
	AppsPath     string `json:"apps_path"`
	LogLevel     string `json:"log_level"`
}

// TrapBody es lo que manda la CPU al atrapar. Para una syscall, id va en a7 y args en a0..a2.
type TrapBody struct {
	Causa string    `json:"causa"`
	ID    uint64    `json:"id"`
	Args  [3]uint64 `json:"args"`
	Stval uint64    `json:"stval"`
}

type TrapRespuesta struct {
	PIDAnterior int   `json:"pid_anterior"`
	PIDActual   int   `json:"pid_actual"`
	Ret         int64 `json:"ret"`
	Terminado   bool  `json:"terminado"`
}

type LecturaBody struct {
	Direccion uint64 `json:"direccion"`
	Tamanio   uint64 `json:"tamanio"`
}

type EscrituraBody struct {
	Direccion uint64 `json:"direccion"`
	Datos     []byte `json:"datos"`
}

type AccesoRespuesta struct {
	Datos     []byte        `json:"datos,omitempty"`
	Resultado TrapRespuesta `json:"resultado"`
}

type ErrorRespuesta struct {
	Mensaje string `json:"mensaje"`
}
