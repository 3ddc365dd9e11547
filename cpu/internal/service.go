package internal

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/syscall"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/trap"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/pkg/kernel"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

var ErrSinKernel = errors.New("no hay cliente de kernel configurado")

type Service struct {
	Log     *slog.Logger
	Kernel  KernelCliente
	Scripts [][]Instruccion
	pcs     map[int]int
}

func NewService(logger *slog.Logger, k KernelCliente, scripts [][]Instruccion) *Service {
	return &Service{
		Log:     logger,
		Kernel:  k,
		Scripts: scripts,
		pcs:     make(map[int]int),
	}
}

// PC devuelve la próxima instrucción a ejecutar del proceso.
func (s *Service) PC(pid int) int {
	return s.pcs[pid]
}

// siguiente devuelve la instrucción en el PC del proceso y lo avanza.
// Un proceso sin script o que lo terminó ejecuta EXIT 0.
func (s *Service) siguiente(pid int) Instruccion {
	pc := s.pcs[pid]
	s.pcs[pid] = pc + 1

	if pid < 0 || pid >= len(s.Scripts) || pc >= len(s.Scripts[pid]) {
		return Instruccion{Linea: pc + 1, Codigo: InstruccionExit, Args: []string{"0"}}
	}
	return s.Scripts[pid][pc]
}

// Ejecutar corre instrucciones arrancando por pidInicial y sigue con el proceso que el kernel
// deje en ejecución después de cada trap, hasta que no quede ninguno.
func (s *Service) Ejecutar(ctx context.Context, pidInicial int) error {
	if s.Kernel == nil {
		return ErrSinKernel
	}

	pid := pidInicial
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		inst := s.siguiente(pid)
		s.Log.Info(fmt.Sprintf("## PID: %d - Ejecutando: %s - %s", pid, inst.Codigo, strings.Join(inst.Args, " ")))

		res, err := s.EjecutarInstruccion(ctx, inst)
		switch {
		case errors.Is(err, kernel.ErrSinProcesos):
			s.Log.Info("El kernel no tiene procesos para ejecutar")
			return nil
		case errors.Is(err, kernel.ErrFallaDeAcceso):
			s.Log.Warn(fmt.Sprintf("## PID: %d - Acceso inválido, el kernel finalizó el proceso", pid),
				log.IntAttr("linea", inst.Linea),
			)
		case errors.Is(err, ErrInstruccionInvalida):
			s.Log.Error("Instrucción inválida", log.IntAttr("pid", pid), log.ErrAttr(err))
			res, err = s.Kernel.EnviarTrap(ctx, kernel.TrapBody{Causa: trap.CausaIllegalInstruction.String()})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if res.PIDActual < 0 {
			s.Log.Info("Todas las aplicaciones terminaron")
			return nil
		}
		if res.PIDActual != pid {
			s.Log.Debug("Cambio de contexto",
				log.IntAttr("pid_anterior", pid),
				log.IntAttr("pid_actual", res.PIDActual),
			)
		}
		pid = res.PIDActual
	}
}

// EjecutarInstruccion traduce la instrucción a un trap o un acceso a memoria de usuario.
func (s *Service) EjecutarInstruccion(ctx context.Context, inst Instruccion) (kernel.TrapRespuesta, error) {
	switch inst.Codigo {
	case InstruccionYield:
		return s.Kernel.Syscall(ctx, syscall.SyscallYield)
	case InstruccionWrite:
		direccion, err := numero(inst, 0)
		if err != nil {
			return kernel.TrapRespuesta{}, err
		}
		return s.Kernel.EscribirMemoria(ctx, direccion, []byte(strings.Join(inst.Args[1:], " ")))
	case InstruccionRead:
		args, err := numeros(inst, 2)
		if err != nil {
			return kernel.TrapRespuesta{}, err
		}
		datos, res, err := s.Kernel.LeerMemoria(ctx, args[0], args[1])
		if err == nil {
			s.Log.Info(fmt.Sprintf("## PID: %d - Lectura - Dir: %#x - Valor: %s", res.PIDActual, args[0], hex.EncodeToString(datos)))
		}
		return res, err
	}

	id, n, ok := syscallDe(inst.Codigo)
	if !ok {
		return kernel.TrapRespuesta{}, fmt.Errorf("%w: línea %d: %q", ErrInstruccionInvalida, inst.Linea, inst.Codigo)
	}
	args, err := numeros(inst, n)
	if err != nil {
		return kernel.TrapRespuesta{}, err
	}
	if inst.Codigo == InstruccionPrint {
		args = append([]uint64{syscall.FdStdout}, args...)
	}
	if inst.Codigo == InstruccionGetTime {
		args = append(args, 0)
	}

	res, err := s.Kernel.Syscall(ctx, id, args...)
	if err == nil && !res.Terminado {
		s.Log.Debug("Syscall ejecutada",
			log.StringAttr("syscall", syscall.Nombre(id)),
			log.AnyAttr("ret", res.Ret),
		)
	}
	return res, err
}

// syscallDe devuelve el número de syscall y cuántos argumentos numéricos lee del script.
func syscallDe(codigo CodigoInstruccion) (uint64, int, bool) {
	switch codigo {
	case InstruccionMmap:
		return syscall.SyscallMmap, 3, true
	case InstruccionMunmap:
		return syscall.SyscallMunmap, 2, true
	case InstruccionExit:
		return syscall.SyscallExit, 1, true
	case InstruccionGetTime:
		return syscall.SyscallGetTime, 1, true
	case InstruccionTaskInfo:
		return syscall.SyscallTaskInfo, 1, true
	case InstruccionSetPriority:
		return syscall.SyscallSetPriority, 1, true
	case InstruccionPrint:
		return syscall.SyscallWrite, 2, true
	}
	return 0, 0, false
}
