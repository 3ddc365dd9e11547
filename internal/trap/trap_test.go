package trap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

type tareasFalsas struct {
	pid         int
	marco       Marco
	contador    map[uint64]int
	salidas     map[int]int
	suspendidas int
}

func (f *tareasFalsas) CurrentPID() int                { return f.pid }
func (f *tareasFalsas) CurrentTrapMarco() Marco        { return f.marco }
func (f *tareasFalsas) IncreaseSyscallTimes(id uint64) { f.contador[id]++ }
func (f *tareasFalsas) SuspendCurrentAndRunNext()      { f.suspendidas++ }

func (f *tareasFalsas) Exited(pid int) bool {
	_, ok := f.salidas[pid]
	return ok
}

func (f *tareasFalsas) ExitCurrentAndRunNext(code int) {
	f.salidas[f.pid] = code
	f.pid = -1
}

type syscallsFalsas struct {
	tareas *tareasFalsas
	id     uint64
	args   [3]uint64
	ret    int64
	err    error
	salir  bool
}

func (s *syscallsFalsas) Syscall(id uint64, args [3]uint64) (int64, error) {
	s.id = id
	s.args = args
	if s.salir {
		s.tareas.ExitCurrentAndRunNext(0)
	}
	return s.ret, s.err
}

func nuevoHandler(t *testing.T) (*Handler, *tareasFalsas, *syscallsFalsas) {
	t.Helper()
	mem := mm.NewMemoriaFisica(2)
	tareas := &tareasFalsas{
		pid:      4,
		marco:    NewMarco(mem, mem.Base()+1),
		contador: map[uint64]int{},
		salidas:  map[int]int{},
	}
	syscalls := &syscallsFalsas{tareas: tareas}
	return NewHandler(log.BuildLogger("debug"), tareas, syscalls), tareas, syscalls
}

func TestTrapContext_Marco(t *testing.T) {
	ass := assert.New(t)
	mem := mm.NewMemoriaFisica(2)
	marco := NewMarco(mem, mem.Base()+1)

	cx := AppInitContext(0x400000, 0x405000, 8<<60|0x80002, mm.Trampoline, DireccionTrapHandler)
	cx.X[RegA0] = 42
	marco.Escribir(cx)

	ass.Equal(296, TamTrapContext)
	ass.Equal(cx, marco.Leer())
	ass.Equal(uint64(0x405000), marco.Leer().X[RegSP])
	ass.True(cx.EsUsuario())
}

func TestHandler_Syscall(t *testing.T) {
	ass := assert.New(t)
	h, tareas, syscalls := nuevoHandler(t)

	cx := AppInitContext(0x400000, 0x405000, 0, 0, 0)
	cx.X[RegA7] = 222
	cx.X[RegA0], cx.X[RegA1], cx.X[RegA2] = 0x10000, 0x1000, 3
	tareas.marco.Escribir(cx)
	syscalls.ret = -1

	res, err := h.Manejar(Trap{Causa: CausaUserEnvCall})
	require.NoError(t, err)

	ass.Equal(uint64(222), syscalls.id)
	ass.Equal([3]uint64{0x10000, 0x1000, 3}, syscalls.args)
	ass.Equal(1, tareas.contador[222])
	ass.Equal(Resultado{PIDAnterior: 4, PIDActual: 4, Ret: -1}, res)

	despues := tareas.marco.Leer()
	ass.Equal(uint64(0x400004), despues.Sepc)
	ass.Equal(^uint64(0), despues.X[RegA0], "-1 en a0")
}

func TestHandler_SyscallQueTerminaNoEscribeA0(t *testing.T) {
	h, tareas, syscalls := nuevoHandler(t)
	cx := TrapContext{}
	cx.X[RegA0] = 7
	cx.X[RegA7] = 93
	tareas.marco.Escribir(cx)
	syscalls.salir = true
	syscalls.ret = 99

	res, err := h.Manejar(Trap{Causa: CausaUserEnvCall})
	require.NoError(t, err)
	assert.True(t, res.Terminado)
	assert.Equal(t, -1, res.PIDActual)
	assert.Equal(t, uint64(7), tareas.marco.Leer().X[RegA0])
}

func TestHandler_ErroresDeSyscallMatan(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		codigo int
	}{
		{name: "falla de traducción", err: &mm.FallaDeTraduccion{VA: 0x90000, Acceso: mm.AccesoEscritura}, codigo: CodigoFallaDeMemoria},
		{name: "falla envuelta", err: fmt.Errorf("get_time: %w", &mm.FallaDeTraduccion{VA: 0x1}), codigo: CodigoFallaDeMemoria},
		{name: "syscall no soportada", err: fmt.Errorf("%w: id 9999", ErrSyscallNoSoportada), codigo: CodigoInstruccionIlegal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, tareas, syscalls := nuevoHandler(t)
			tareas.marco.Escribir(TrapContext{})
			syscalls.err = tt.err
			syscalls.ret = -1

			res, err := h.Manejar(Trap{Causa: CausaUserEnvCall})
			require.NoError(t, err)
			assert.True(t, res.Terminado)
			assert.Equal(t, tt.codigo, tareas.salidas[4])
		})
	}
}

func TestHandler_Causas(t *testing.T) {
	tests := []struct {
		name        string
		causa       Causa
		codigo      *int
		suspendidas int
	}{
		{name: "store page fault", causa: CausaStorePageFault, codigo: ptr(CodigoFallaDeMemoria)},
		{name: "load fault", causa: CausaLoadFault, codigo: ptr(CodigoFallaDeMemoria)},
		{name: "instruction page fault", causa: CausaInstructionPageFault, codigo: ptr(CodigoFallaDeMemoria)},
		{name: "instrucción ilegal", causa: CausaIllegalInstruction, codigo: ptr(CodigoInstruccionIlegal)},
		{name: "timer", causa: CausaSupervisorTimer, suspendidas: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, tareas, _ := nuevoHandler(t)
			tareas.marco.Escribir(TrapContext{Sepc: 0x400010})

			res, err := h.Manejar(Trap{Causa: tt.causa, Stval: 0xdead000})
			require.NoError(t, err)
			assert.Equal(t, tt.suspendidas, tareas.suspendidas)
			if tt.codigo != nil {
				assert.Equal(t, *tt.codigo, tareas.salidas[4])
				assert.True(t, res.Terminado)
			} else {
				assert.Empty(t, tareas.salidas)
			}
		})
	}
}

func TestHandler_Errores(t *testing.T) {
	h, tareas, _ := nuevoHandler(t)

	_, err := h.Manejar(Trap{Causa: Causa(77)})
	assert.ErrorIs(t, err, ErrCausaNoSoportada)

	tareas.pid = -1
	_, err = h.Manejar(Trap{Causa: CausaUserEnvCall})
	assert.ErrorIs(t, err, ErrSinProcesoEnEjecucion)
}

func TestHandler_TrapDesdeSupervisor(t *testing.T) {
	h, tareas, syscalls := nuevoHandler(t)
	tareas.marco.Escribir(TrapContext{Sstatus: SstatusSPP, Sepc: 0x80001000})

	assert.Panics(t, func() { _, _ = h.Manejar(Trap{Causa: CausaUserEnvCall}) })
	assert.Empty(t, tareas.contador, "no se cuenta la syscall")
	assert.Zero(t, syscalls.id)
	assert.Empty(t, tareas.salidas)
}

func TestParseCausa(t *testing.T) {
	c, err := ParseCausa("StorePageFault")
	require.NoError(t, err)
	assert.Equal(t, CausaStorePageFault, c)
	assert.Equal(t, "StorePageFault", c.String())

	_, err = ParseCausa("Breakpoint")
	assert.ErrorIs(t, err, ErrCausaNoSoportada)
	assert.Equal(t, "Causa(77)", Causa(77).String())
}

func ptr(v int) *int {
	return &v
}
