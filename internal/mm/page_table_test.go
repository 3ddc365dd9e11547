package mm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageTable_MapTranslateUnmap(t *testing.T) {
	ass := assert.New(t)
	a := nuevoAllocator(t, 16)

	pt, err := NewPageTable(a)
	require.NoError(t, err)

	frame, err := a.Alloc()
	require.NoError(t, err)

	vpn := NewVirtAddr(0x10000).Floor()
	require.NoError(t, pt.Map(vpn, frame.PPN, FlagR|FlagW|FlagU))

	pte, ok := pt.Translate(vpn)
	require.True(t, ok)
	ass.Equal(frame.PPN, pte.PPN())
	ass.True(pte.IsValid())
	ass.True(pte.Readable())
	ass.True(pte.Writable())
	ass.True(pte.User())
	ass.False(pte.Executable())

	pte, ok = pt.Translate(NewVirtAddr(0x10123).Floor())
	require.True(t, ok)
	ass.Equal(frame.PPN, pte.PPN())

	ass.Panics(func() { _ = pt.Map(vpn, frame.PPN, FlagR) }, "remapear es un error del kernel")

	pt.Unmap(vpn)
	_, ok = pt.Translate(vpn)
	ass.False(ok)
	ass.Panics(func() { pt.Unmap(vpn) })
}

func TestPageTable_FromToken(t *testing.T) {
	a := nuevoAllocator(t, 16)
	pt, err := NewPageTable(a)
	require.NoError(t, err)

	frame, err := a.Alloc()
	require.NoError(t, err)
	require.NoError(t, pt.Map(5, frame.PPN, FlagR))

	token := pt.Token()
	assert.Equal(t, uint64(8), token>>60)

	vista := FromToken(a.Memoria(), token)
	pte, ok := vista.Translate(5)
	require.True(t, ok)
	assert.Equal(t, frame.PPN, pte.PPN())
	assert.Panics(t, func() { _ = vista.Map(6, frame.PPN, FlagR) })
}

func TestPageTable_LiberarDevuelveTablas(t *testing.T) {
	a := nuevoAllocator(t, 16)
	libres := a.FreeFrameCount()

	pt, err := NewPageTable(a)
	require.NoError(t, err)
	frame, err := a.Alloc()
	require.NoError(t, err)
	require.NoError(t, pt.Map(0x10, frame.PPN, FlagR))

	// raíz + dos niveles intermedios + el frame de datos
	assert.Equal(t, libres-4, a.FreeFrameCount())

	pt.Liberar()
	frame.Liberar()
	assert.Equal(t, libres, a.FreeFrameCount())
}

func TestPTEFlags_String(t *testing.T) {
	assert.Equal(t, "VRW-U---", (FlagV | FlagR | FlagW | FlagU).String())
	assert.Equal(t, "RW-U", (PermR | PermW | PermU).String())
}
