package internal

import (
	"bytes"
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/cmd/api"
	kernelvm "github.com/sisoputnfrba/tp-golang/kernel-vm/internal/kernel"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/syscall"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/testutil"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/timer"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/pkg/kernel"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

func TestService_ContraKernel(t *testing.T) {
	ass := assert.New(t)
	logger := log.BuildLogger("debug")
	consola := &bytes.Buffer{}

	k, err := kernelvm.New(logger, 64, 4, timer.NewRelojManual(0), consola)
	require.NoError(t, err)
	for range 2 {
		_, err = k.CargarApp(testutil.AppSimple())
		require.NoError(t, err)
	}
	require.NoError(t, k.Iniciar())
	framesIniciales := k.FramesLibres()

	h := &api.Handler{Log: logger, Kernel: k}
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	puerto, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	s := NewService(logger, kernel.NewKernel(u.Hostname(), puerto, logger), [][]Instruccion{
		script(t, "MMAP 0x10000 0x1000 3\nWRITE 0x10000 hola\nPRINT 0x10000 4\nYIELD\nREAD 0x10000 4\nEXIT 7"),
		script(t, "MMAP 0x10001 0x1000 3\nWRITE 0x400000 x\nEXIT 0"),
	})
	require.NoError(t, s.Ejecutar(context.Background(), k.PIDActual()))

	procesos := k.Procesos()
	require.Len(t, procesos, 2)
	for _, p := range procesos {
		ass.Equal("EXITED", p.Estado)
		require.NotNil(t, p.CodigoSalida)
	}
	ass.Equal(7, *procesos[0].CodigoSalida)
	ass.Equal(-2, *procesos[1].CodigoSalida)
	ass.Equal(uint32(1), procesos[0].SyscallTimes[syscall.SyscallMmap])
	ass.Equal(uint32(1), procesos[0].SyscallTimes[syscall.SyscallWrite])
	ass.Equal(uint32(1), procesos[1].SyscallTimes[syscall.SyscallMmap])
	ass.Equal("hola", consola.String())
	ass.Greater(k.FramesLibres(), framesIniciales)
	ass.Equal(-1, k.PIDActual())
}
