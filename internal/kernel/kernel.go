package kernel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/mm"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/syscall"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/task"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/timer"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
	uniqueid "github.com/sisoputnfrba/tp-golang/kernel-vm/utils/unique-id"
)

// La imagen del kernel necesita al menos el trampolín y la página con las rutinas de trap.
const minKernelFrames = 2

var (
	ErrYaIniciado     = errors.New("el kernel ya está en ejecución")
	ErrNoIniciado     = errors.New("el kernel todavía no arrancó")
	ErrAccesoInvalido = errors.New("acceso inválido a memoria de usuario")
	ErrConfigInvalida = errors.New("configuración de memoria inválida")
)

// Kernel es el único punto de entrada desde la CPU. Atiende un trap por vez.
type Kernel struct {
	mu          sync.Mutex
	Log         *slog.Logger
	mem         *mm.MemoriaFisica
	frames      *mm.FrameAllocator
	kernelSpace *mm.KernelSpace
	reloj       timer.Reloj
	tareas      *task.TaskManager
	syscalls    *syscall.Dispatcher
	traps       *trap.Handler
	pids        *uniqueid.UniqueID
	iniciado    bool
}

// PedidoTrap es lo que la CPU entrega al atrapar: la causa y, si es una syscall, a7 y a0..a2.
type PedidoTrap struct {
	Causa trap.Causa
	ID    uint64
	Args  [3]uint64
	Stval uint64
}

func New(logger *slog.Logger, memoryFrames, kernelFrames int, reloj timer.Reloj, consola io.Writer) (*Kernel, error) {
	if kernelFrames < minKernelFrames || kernelFrames >= memoryFrames {
		return nil, fmt.Errorf("%w: memory_frames=%d kernel_frames=%d", ErrConfigInvalida, memoryFrames, kernelFrames)
	}

	mem := mm.NewMemoriaFisica(memoryFrames)
	frames := mm.NewFrameAllocator(mem, mem.Base()+mm.PhysPageNum(kernelFrames), mem.Fin())
	kernelSpace, err := mm.NewKernelSpace(frames, kernelFrames)
	if err != nil {
		return nil, fmt.Errorf("espacio del kernel: %w", err)
	}

	tareas := task.NewTaskManager(logger)
	syscalls := syscall.NewDispatcher(logger, tareas, frames, mem, reloj, consola)

	logger.Debug("Kernel inicializado",
		log.IntAttr("memory_frames", memoryFrames),
		log.IntAttr("kernel_frames", kernelFrames),
		log.IntAttr("frames_libres", frames.FreeFrameCount()),
		log.HexAttr("kernel_satp", kernelSpace.Token()),
	)

	return &Kernel{
		Log:         logger,
		mem:         mem,
		frames:      frames,
		kernelSpace: kernelSpace,
		reloj:       reloj,
		tareas:      tareas,
		syscalls:    syscalls,
		traps:       trap.NewHandler(logger, tareas, syscalls),
		pids:        uniqueid.Init(0),
	}, nil
}

// CargarApp crea el proceso de la imagen y devuelve su PID. Sólo se puede antes de Iniciar.
func (k *Kernel) CargarApp(elfData []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.iniciado {
		return -1, ErrYaIniciado
	}
	// Los PID no se reutilizan aunque la carga falle.
	appID := k.pids.GetUniqueID()
	tcb, err := task.NewTaskControlBlock(elfData, appID, k.frames, k.kernelSpace, k.reloj)
	if err != nil {
		return -1, err
	}
	k.tareas.Agregar(tcb)
	return appID, nil
}

// CargarApps carga en orden alfabético cada archivo del directorio.
func (k *Kernel) CargarApps(dir string) (int, error) {
	entradas, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cargadas := 0
	for _, e := range entradas {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		datos, err := os.ReadFile(path)
		if err != nil {
			return cargadas, err
		}
		pid, err := k.CargarApp(datos)
		if err != nil {
			return cargadas, fmt.Errorf("%s: %w", e.Name(), err)
		}
		k.Log.Info("Aplicación cargada",
			log.StringAttr("archivo", e.Name()),
			log.IntAttr("pid", pid),
		)
		cargadas++
	}
	return cargadas, nil
}

func (k *Kernel) Iniciar() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.iniciado {
		return ErrYaIniciado
	}
	if err := k.tareas.RunFirstTask(); err != nil {
		return err
	}
	k.iniciado = true
	k.Log.Info("Kernel iniciado",
		log.IntAttr("procesos", k.tareas.Cantidad()),
		log.IntAttr("pid_actual", k.tareas.CurrentPID()),
		log.IntAttr("frames_libres", k.frames.FreeFrameCount()),
	)
	return nil
}

// ManejarTrap aplica el trap al proceso en ejecución.
func (k *Kernel) ManejarTrap(p PedidoTrap) (trap.Resultado, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.iniciado {
		return trap.Resultado{PIDAnterior: -1, PIDActual: -1}, ErrNoIniciado
	}
	if p.Causa == trap.CausaUserEnvCall && k.tareas.CurrentPID() >= 0 {
		marco := k.tareas.CurrentTrapMarco()
		cx := marco.Leer()
		cx.X[trap.RegA7] = p.ID
		cx.X[trap.RegA0], cx.X[trap.RegA1], cx.X[trap.RegA2] = p.Args[0], p.Args[1], p.Args[2]
		marco.Escribir(cx)
	}
	return k.traps.Manejar(trap.Trap{Causa: p.Causa, Stval: p.Stval})
}

// LeerUsuario lee como lo haría el proceso en ejecución. Una violación se entrega como page fault y lo mata.
func (k *Kernel) LeerUsuario(va, n uint64) ([]byte, trap.Resultado, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.verificarEnEjecucion(); err != nil {
		return nil, trap.Resultado{PIDAnterior: -1, PIDActual: -1}, err
	}
	pid := k.tareas.CurrentPID()
	datos, err := mm.LeerUsuario(k.mem, k.tareas.CurrentUserToken(), va, n)
	if err != nil {
		res := k.fallaDeAcceso(trap.CausaLoadPageFault, err)
		return nil, res, fmt.Errorf("%w: %w", ErrAccesoInvalido, err)
	}
	return datos, trap.Resultado{PIDAnterior: pid, PIDActual: pid}, nil
}

func (k *Kernel) EscribirUsuario(va uint64, datos []byte) (trap.Resultado, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.verificarEnEjecucion(); err != nil {
		return trap.Resultado{PIDAnterior: -1, PIDActual: -1}, err
	}
	pid := k.tareas.CurrentPID()
	if err := mm.EscribirUsuario(k.mem, k.tareas.CurrentUserToken(), va, datos); err != nil {
		res := k.fallaDeAcceso(trap.CausaStorePageFault, err)
		return res, fmt.Errorf("%w: %w", ErrAccesoInvalido, err)
	}
	return trap.Resultado{PIDAnterior: pid, PIDActual: pid}, nil
}

func (k *Kernel) verificarEnEjecucion() error {
	if !k.iniciado {
		return ErrNoIniciado
	}
	if k.tareas.CurrentPID() < 0 {
		return trap.ErrSinProcesoEnEjecucion
	}
	return nil
}

func (k *Kernel) fallaDeAcceso(causa trap.Causa, err error) trap.Resultado {
	var falla *mm.FallaDeTraduccion
	stval := uint64(0)
	if errors.As(err, &falla) {
		stval = falla.VA
	}
	res, errTrap := k.traps.Manejar(trap.Trap{Causa: causa, Stval: stval})
	if errTrap != nil {
		k.Log.Error("Error entregando la falla de acceso", log.ErrAttr(errTrap))
	}
	return res
}

func (k *Kernel) Procesos() []task.Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.tareas.Snapshot()
}

func (k *Kernel) Proceso(pid int) (task.Snapshot, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.tareas.SnapshotPID(pid)
}

func (k *Kernel) PIDActual() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.tareas.CurrentPID()
}

func (k *Kernel) FramesLibres() int {
	return k.frames.FreeFrameCount()
}
