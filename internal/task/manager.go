package task

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

var ErrSinTareas = errors.New("no hay aplicaciones para ejecutar")

// TaskManager lleva todas las tareas y cuál está en ejecución. No tiene lock propio: el kernel
// serializa cada trap antes de llegar acá.
type TaskManager struct {
	Log    *slog.Logger
	tareas []*TaskControlBlock
	actual int
}

func NewTaskManager(logger *slog.Logger) *TaskManager {
	return &TaskManager{
		Log:    logger,
		tareas: make([]*TaskControlBlock, 0),
		actual: -1,
	}
}

func (m *TaskManager) Agregar(t *TaskControlBlock) {
	m.tareas = append(m.tareas, t)
	m.Log.Info(fmt.Sprintf("## (%d) Se crea el proceso - Estado: %s", t.PID, t.Estado),
		log.HexAttr("base_size", t.BaseSize),
	)
}

func (m *TaskManager) Cantidad() int {
	return len(m.tareas)
}

func (m *TaskManager) RunFirstTask() error {
	if len(m.tareas) == 0 {
		return ErrSinTareas
	}
	m.ejecutar(0)
	return nil
}

func (m *TaskManager) ejecutar(idx int) {
	t := m.tareas[idx]
	m.transicionar(t, EstadoRunning)
	t.UpdateWhenScheduled()
	m.actual = idx
}

func (m *TaskManager) transicionar(t *TaskControlBlock, nuevo Estado) {
	anterior := t.Estado
	if err := t.Transicionar(nuevo); err != nil {
		panic(err)
	}
	m.Log.Info(fmt.Sprintf("## (%d) Pasa del estado %s al estado %s", t.PID, anterior, nuevo))
}

// findNextTask busca round robin la primera tarea READY después de la actual, incluida la actual.
func (m *TaskManager) findNextTask() (int, bool) {
	n := len(m.tareas)
	desde := max(m.actual, 0)
	for i := desde + 1; i <= desde+n; i++ {
		idx := i % n
		if m.tareas[idx].Estado == EstadoReady {
			return idx, true
		}
	}
	return 0, false
}

func (m *TaskManager) runNextTask() {
	siguiente, ok := m.findNextTask()
	if !ok {
		m.actual = -1
		m.Log.Info("All applications completed!")
		return
	}
	m.ejecutar(siguiente)
}

func (m *TaskManager) current() *TaskControlBlock {
	if m.actual < 0 {
		panic(trap.ErrSinProcesoEnEjecucion)
	}
	return m.tareas[m.actual]
}

func (m *TaskManager) SuspendCurrentAndRunNext() {
	m.transicionar(m.current(), EstadoReady)
	m.runNextTask()
}

// ExitCurrentAndRunNext termina la tarea actual y devuelve sus frames de usuario. La pila de kernel queda reservada para su slot.
func (m *TaskManager) ExitCurrentAndRunNext(code int) {
	t := m.current()
	m.transicionar(t, EstadoExited)
	t.CodigoSalida = code
	m.Log.Info(fmt.Sprintf("[kernel] Application exited with code %d", code), log.IntAttr("pid", t.PID))
	m.Log.Info(fmt.Sprintf("## (%d) - Finaliza el proceso", t.PID),
		log.IntAttr("tiempo_ejecucion_us", int(t.RunningTime())),
	)
	t.MemorySet.Liberar()
	m.runNextTask()
}

func (m *TaskManager) CurrentPID() int {
	if m.actual < 0 {
		return -1
	}
	return m.tareas[m.actual].PID
}

func (m *TaskManager) CurrentTrapMarco() trap.Marco {
	return m.current().TrapMarco()
}

func (m *TaskManager) CurrentUserToken() uint64 {
	return m.current().UserToken()
}

func (m *TaskManager) CurrentTaskInfo() TaskInfo {
	return m.current().Info()
}

func (m *TaskManager) CurrentMmap(start, length, port uint64) int64 {
	return m.current().Mmap(start, length, port)
}

func (m *TaskManager) CurrentMunmap(start, length uint64) int64 {
	return m.current().Munmap(start, length)
}

// IncreaseSyscallTimes cuenta la syscall antes de despacharla. Los ids fuera de rango no se cuentan.
func (m *TaskManager) IncreaseSyscallTimes(id uint64) {
	if id < MaxSyscallNum {
		m.current().SyscallTimes[id]++
	}
}

func (m *TaskManager) Exited(pid int) bool {
	t, ok := m.buscar(pid)
	return ok && t.Estado == EstadoExited
}

func (m *TaskManager) buscar(pid int) (*TaskControlBlock, bool) {
	for _, t := range m.tareas {
		if t.PID == pid {
			return t, true
		}
	}
	return nil, false
}

// Snapshot es la vista de una tarea para diagnóstico.
type Snapshot struct {
	PID             int               `json:"pid"`
	Estado          string            `json:"estado"`
	Ejecutando      bool              `json:"ejecutando"`
	TiempoEjecucion uint64            `json:"tiempo_ejecucion_us"`
	SyscallTimes    map[uint64]uint32 `json:"syscall_times"`
	CodigoSalida    *int              `json:"codigo_salida,omitempty"`
	Regiones        []mm.Region       `json:"regiones,omitempty"`
}

func (m *TaskManager) snapshot(t *TaskControlBlock) Snapshot {
	s := Snapshot{
		PID:             t.PID,
		Estado:          t.Estado.String(),
		Ejecutando:      m.actual >= 0 && m.tareas[m.actual] == t,
		TiempoEjecucion: t.RunningTime(),
		SyscallTimes:    make(map[uint64]uint32),
	}
	for id, veces := range t.SyscallTimes {
		if veces > 0 {
			s.SyscallTimes[uint64(id)] = veces
		}
	}
	if t.Estado == EstadoExited {
		codigo := t.CodigoSalida
		s.CodigoSalida = &codigo
	} else {
		s.Regiones = t.MemorySet.Regiones()
	}
	return s
}

func (m *TaskManager) Snapshot() []Snapshot {
	snapshots := make([]Snapshot, 0, len(m.tareas))
	for _, t := range m.tareas {
		snapshots = append(snapshots, m.snapshot(t))
	}
	return snapshots
}

func (m *TaskManager) SnapshotPID(pid int) (Snapshot, bool) {
	t, ok := m.buscar(pid)
	if !ok {
		return Snapshot{}, false
	}
	return m.snapshot(t), true
}
