package timer

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

const MicrosPorSegundo = 1_000_000

// Reloj es el reloj monotónico del kernel en microsegundos.
type Reloj interface {
	AhoraMicros() uint64
}

// RelojMonotonico cuenta desde el arranque del kernel.
type RelojMonotonico struct {
	inicio time.Time
}

func NewRelojMonotonico() *RelojMonotonico {
	return &RelojMonotonico{inicio: time.Now()}
}

func (r *RelojMonotonico) AhoraMicros() uint64 {
	return uint64(time.Since(r.inicio).Microseconds())
}

// RelojManual sólo avanza cuando se lo piden.
type RelojManual struct {
	mu     sync.Mutex
	micros uint64
}

func NewRelojManual(inicial uint64) *RelojManual {
	return &RelojManual{micros: inicial}
}

func (r *RelojManual) AhoraMicros() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.micros
}

func (r *RelojManual) Avanzar(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.micros += uint64(d.Microseconds())
}

// TimeVal separa un contador de microsegundos en segundos y microsegundos.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

func NewTimeVal(micros uint64) TimeVal {
	return TimeVal{
		Sec:  micros / MicrosPorSegundo,
		Usec: micros % MicrosPorSegundo,
	}
}

func (tv TimeVal) Micros() uint64 {
	return tv.Sec*MicrosPorSegundo + tv.Usec
}

// MarshalBinary escribe {sec, usec} como dos palabras little-endian.
func (tv TimeVal) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:], tv.Sec)
	binary.LittleEndian.PutUint64(buf[8:], tv.Usec)
	return buf, nil
}

func (tv *TimeVal) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("TimeVal necesita 16 bytes, se recibieron %d", len(data))
	}
	tv.Sec = binary.LittleEndian.Uint64(data[0:])
	tv.Usec = binary.LittleEndian.Uint64(data[8:])
	return nil
}
