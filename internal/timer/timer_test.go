package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTimeVal(t *testing.T) {
	ass := assert.New(t)

	tests := []struct {
		name   string
		micros uint64
		want   TimeVal
	}{
		{name: "cero", micros: 0, want: TimeVal{}},
		{name: "menos de un segundo", micros: 999_999, want: TimeVal{Sec: 0, Usec: 999_999}},
		{name: "segundo exacto", micros: 1_000_000, want: TimeVal{Sec: 1, Usec: 0}},
		{name: "mixto", micros: 3_250_001, want: TimeVal{Sec: 3, Usec: 250_001}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTimeVal(tt.micros)
			ass.Equal(tt.want, got)
			ass.Equal(tt.micros, got.Micros())
		})
	}
}

func TestRelojMonotonico_NoDecrece(t *testing.T) {
	r := NewRelojMonotonico()

	anterior := r.AhoraMicros()
	for i := 0; i < 1000; i++ {
		ahora := r.AhoraMicros()
		assert.GreaterOrEqual(t, ahora, anterior)
		anterior = ahora
	}
}

func TestRelojManual(t *testing.T) {
	r := NewRelojManual(10)

	assert.Equal(t, uint64(10), r.AhoraMicros())
	r.Avanzar(1500 * time.Microsecond)
	assert.Equal(t, uint64(1510), r.AhoraMicros())
}

func TestTimeVal_Binario(t *testing.T) {
	tv := TimeVal{Sec: 2, Usec: 5}
	datos, err := tv.MarshalBinary()
	assert.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0}, datos)

	var leido TimeVal
	assert.NoError(t, leido.UnmarshalBinary(datos))
	assert.Equal(t, tv, leido)
	assert.Error(t, leido.UnmarshalBinary(datos[:8]))
}
