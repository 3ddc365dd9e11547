package mm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nuevoAllocator reserva el primer frame para el trampolín y entrega el resto.
func nuevoAllocator(t *testing.T, frames int) *FrameAllocator {
	t.Helper()
	mem := NewMemoriaFisica(frames)
	return NewFrameAllocator(mem, mem.Base()+1, mem.Fin())
}

func TestFrameAllocator_AllocYLiberar(t *testing.T) {
	ass := assert.New(t)
	a := nuevoAllocator(t, 4)

	ass.Equal(3, a.FreeFrameCount())

	f1, err := a.Alloc()
	require.NoError(t, err)
	f2, err := a.Alloc()
	require.NoError(t, err)
	ass.NotEqual(f1.PPN, f2.PPN)
	ass.Equal(1, a.FreeFrameCount())

	f1.Liberar()
	ass.Equal(2, a.FreeFrameCount())

	// liberar dos veces el mismo tracker no hace nada
	f1.Liberar()
	ass.Equal(2, a.FreeFrameCount())

	f3, err := a.Alloc()
	require.NoError(t, err)
	ass.Equal(f1.PPN, f3.PPN, "reutiliza primero los reciclados")
}

func TestFrameAllocator_SinFrames(t *testing.T) {
	a := nuevoAllocator(t, 2)

	_, err := a.Alloc()
	require.NoError(t, err)

	_, err = a.Alloc()
	assert.ErrorIs(t, err, ErrSinFrames)
	assert.Equal(t, 0, a.FreeFrameCount())
}

func TestFrameAllocator_EntregaFramesEnCero(t *testing.T) {
	a := nuevoAllocator(t, 3)

	f, err := a.Alloc()
	require.NoError(t, err)
	a.Memoria().Frame(f.PPN)[10] = 0xff
	f.Liberar()

	f, err = a.Alloc()
	require.NoError(t, err)
	assert.Equal(t, byte(0), a.Memoria().Frame(f.PPN)[10])
}

func TestFrameAllocator_DeallocInvalido(t *testing.T) {
	a := nuevoAllocator(t, 3)

	assert.Panics(t, func() { a.dealloc(a.Memoria().Base() + 2) })
}

func TestMemoriaFisica_FrameFueraDeRango(t *testing.T) {
	mem := NewMemoriaFisica(2)

	assert.Panics(t, func() { mem.Frame(mem.Fin()) })
	assert.Panics(t, func() { mem.Frame(mem.Base() - 1) })
	assert.Len(t, mem.Frame(mem.Base()), PageSize)
}
