package task

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/timer"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"
)

const MaxSyscallNum = 500

var ErrTransicionInvalida = errors.New("transición de estado inválida")

type Estado int

const (
	EstadoUnInit Estado = iota
	EstadoReady
	EstadoRunning
	EstadoExited
)

func (e Estado) String() string {
	switch e {
	case EstadoUnInit:
		return "UNINIT"
	case EstadoReady:
		return "READY"
	case EstadoRunning:
		return "RUNNING"
	case EstadoExited:
		return "EXITED"
	}
	return fmt.Sprintf("Estado(%d)", int(e))
}

var transicionesValidas = map[Estado][]Estado{
	EstadoUnInit:  {EstadoReady},
	EstadoReady:   {EstadoRunning},
	EstadoRunning: {EstadoReady, EstadoExited},
}

const sinIniciar = math.MaxUint64

type TaskControlBlock struct {
	PID          int
	Estado       Estado
	Contexto     TaskContext
	MemorySet    *mm.MemorySet
	TrapCxPPN    mm.PhysPageNum
	BaseSize     uint64
	SyscallTimes [MaxSyscallNum]uint32
	CodigoSalida int

	firstScheduled bool
	startTime      uint64
	endTime        uint64
	reloj          timer.Reloj
	mem            *mm.MemoriaFisica
}

// NewTaskControlBlock carga la imagen ELF de la app appID y le mapea su pila de kernel en el espacio del kernel.
func NewTaskControlBlock(elfData []byte, appID int, frames *mm.FrameAllocator, kernelSpace *mm.KernelSpace, reloj timer.Reloj) (*TaskControlBlock, error) {
	memorySet, userSP, entry, err := mm.FromELF(frames, elfData)
	if err != nil {
		return nil, fmt.Errorf("app %d: %w", appID, err)
	}

	pte, ok := memorySet.Translate(mm.VirtAddr(mm.TrapContext).Floor())
	if !ok {
		panic("el espacio de la app no tiene página de contexto de trap")
	}

	kstackBottom, kstackTop := mm.KernelStackPosition(appID)
	err = kernelSpace.InsertFramedArea(kstackBottom, kstackTop, mm.PermR|mm.PermW)
	if err != nil {
		memorySet.Liberar()
		return nil, fmt.Errorf("pila de kernel de la app %d: %w", appID, err)
	}

	t := &TaskControlBlock{
		PID:            appID,
		Estado:         EstadoUnInit,
		Contexto:       GotoTrapReturn(uint64(kstackTop)),
		MemorySet:      memorySet,
		TrapCxPPN:      pte.PPN(),
		BaseSize:       userSP,
		firstScheduled: true,
		startTime:      sinIniciar,
		reloj:          reloj,
		mem:            frames.Memoria(),
	}
	t.TrapMarco().Escribir(trap.AppInitContext(
		entry,
		userSP,
		kernelSpace.Token(),
		uint64(kstackTop),
		trap.DireccionTrapHandler,
	))
	if err = t.Transicionar(EstadoReady); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TaskControlBlock) TrapMarco() trap.Marco {
	return trap.NewMarco(t.mem, t.TrapCxPPN)
}

func (t *TaskControlBlock) UserToken() uint64 {
	return t.MemorySet.Token()
}

func (t *TaskControlBlock) Transicionar(nuevo Estado) error {
	for _, e := range transicionesValidas[t.Estado] {
		if e == nuevo {
			t.Estado = nuevo
			if nuevo == EstadoExited {
				t.endTime = t.reloj.AhoraMicros()
			}
			return nil
		}
	}
	return fmt.Errorf("%w: pid %d de %s a %s", ErrTransicionInvalida, t.PID, t.Estado, nuevo)
}

// UpdateWhenScheduled marca el inicio de ejecución la primera vez que la tarea pasa a RUNNING.
func (t *TaskControlBlock) UpdateWhenScheduled() {
	if t.firstScheduled {
		t.firstScheduled = false
		t.startTime = t.reloj.AhoraMicros()
	}
}

// RunningTime devuelve los microsegundos desde la primera planificación, o 0 si nunca corrió.
// Una tarea terminada queda con el tiempo que tenía al salir.
func (t *TaskControlBlock) RunningTime() uint64 {
	if t.startTime == sinIniciar {
		return 0
	}
	if t.Estado == EstadoExited {
		return t.endTime - t.startTime
	}
	return t.reloj.AhoraMicros() - t.startTime
}

func (t *TaskControlBlock) Mmap(start, length, port uint64) int64 {
	inicio, fin, ok := mm.RangoUsuario(start, length)
	if !ok {
		return -1
	}
	if t.MemorySet.IsOverlapped(inicio, fin) {
		return -1
	}
	if inicio.Floor() == fin.Ceil() {
		return 0
	}

	perm := mm.MapPermission((port&0x7)<<1) | mm.PermU
	if err := t.MemorySet.InsertFramedArea(inicio, fin, perm); err != nil {
		return -1
	}
	return 0
}

func (t *TaskControlBlock) Munmap(start, length uint64) int64 {
	inicio, fin, ok := mm.RangoUsuario(start, length)
	if !ok {
		return -1
	}
	if t.MemorySet.RemoveFramedArea(inicio, fin) {
		return 0
	}
	return -1
}

// TaskInfo es el registro de diagnóstico que devuelve sys_task_info.
type TaskInfo struct {
	Status       Estado
	SyscallTimes [MaxSyscallNum]uint32
	Time         uint64
}

// taskInfoWire respeta el layout C: el u32 de relleno alinea time a 8 bytes.
type taskInfoWire struct {
	Status       uint32
	SyscallTimes [MaxSyscallNum]uint32
	_            uint32
	Time         uint64
}

func (ti TaskInfo) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := binary.Write(&buf, binary.LittleEndian, taskInfoWire{
		Status:       uint32(ti.Status),
		SyscallTimes: ti.SyscallTimes,
		Time:         ti.Time,
	})
	return buf.Bytes(), err
}

func (ti *TaskInfo) UnmarshalBinary(data []byte) error {
	var w taskInfoWire
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &w); err != nil {
		return err
	}
	ti.Status = Estado(w.Status)
	ti.SyscallTimes = w.SyscallTimes
	ti.Time = w.Time
	return nil
}

func (t *TaskControlBlock) Info() TaskInfo {
	return TaskInfo{
		Status:       t.Estado,
		SyscallTimes: t.SyscallTimes,
		Time:         t.RunningTime(),
	}
}
