package mm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVirtAddr_FloorCeil(t *testing.T) {
	ass := assert.New(t)

	tests := []struct {
		name  string
		va    uint64
		floor VirtPageNum
		ceil  VirtPageNum
	}{
		{name: "cero", va: 0, floor: 0, ceil: 0},
		{name: "alineada", va: 0x10000, floor: 0x10, ceil: 0x10},
		{name: "un byte después", va: 0x10001, floor: 0x10, ceil: 0x11},
		{name: "último byte de la página", va: 0x10fff, floor: 0x10, ceil: 0x11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			va := NewVirtAddr(tt.va)
			ass.Equal(tt.floor, va.Floor())
			ass.Equal(tt.ceil, va.Ceil())
		})
	}
}

func TestNewVirtAddr_Trunca39Bits(t *testing.T) {
	ass := assert.New(t)

	ass.Equal(VirtAddr(0x1000), NewVirtAddr(1<<39|0x1000))
	ass.True(NewVirtAddr(0x3000).Aligned())
	ass.False(NewVirtAddr(0x3001).Aligned())
	ass.Equal(uint64(0x234), NewVirtAddr(0x1234).PageOffset())
}

func TestRangoUsuario(t *testing.T) {
	const limite = uint64(1) << VABits

	tests := []struct {
		name   string
		start  uint64
		length uint64
		ok     bool
		fin    VirtAddr
	}{
		{name: "una página", start: 0x10000, length: 0x1000, ok: true, fin: 0x11000},
		{name: "largo cero", start: 0x10000, length: 0, ok: true, fin: 0x10000},
		{name: "hasta el final del espacio", start: Trampoline, length: PageSize, ok: true, fin: VirtAddr(limite)},
		{name: "largo de 2^39", start: 0x10000, length: limite},
		{name: "largo de 2^39 más una página", start: 0x10000, length: limite + PageSize},
		{name: "pasa el final por un byte", start: Trampoline, length: PageSize + 1},
		{name: "inicio fuera de SV39", start: limite, length: PageSize},
		{name: "desborda uint64", start: 0x10000, length: ^uint64(0) - 0xfff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inicio, fin, ok := RangoUsuario(tt.start, tt.length)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, VirtAddr(tt.start), inicio)
				assert.Equal(t, tt.fin, fin)
			}
		})
	}
}

func TestVirtPageNum_Indexes(t *testing.T) {
	vpn := VirtPageNum(1<<18 | 2<<9 | 3)
	assert.Equal(t, [3]uint64{1, 2, 3}, vpn.Indexes())
}

func TestVPNRange(t *testing.T) {
	ass := assert.New(t)
	r := NewVPNRange(10, 20)

	ass.Equal(uint64(10), r.Len())
	ass.True(r.Contains(10))
	ass.False(r.Contains(20))
	ass.True(r.Overlaps(NewVPNRange(19, 25)))
	ass.False(r.Overlaps(NewVPNRange(20, 25)))
	ass.True(r.Includes(NewVPNRange(12, 15)))
	ass.False(r.Includes(NewVPNRange(5, 15)))
	ass.Panics(func() { NewVPNRange(3, 2) })
}

func TestKernelStackPosition(t *testing.T) {
	ass := assert.New(t)

	bottom0, top0 := KernelStackPosition(0)
	bottom1, top1 := KernelStackPosition(1)

	ass.Equal(VirtAddr(Trampoline), top0)
	ass.Equal(uint64(KernelStackSize), uint64(top0-bottom0))
	// una página de guarda entre pilas
	ass.Equal(uint64(PageSize), uint64(bottom0-top1))
	ass.Equal(uint64(KernelStackSize), uint64(top1-bottom1))
}
