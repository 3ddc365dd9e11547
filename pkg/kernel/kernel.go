package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

var (
	ErrFallaDeAcceso = errors.New("el kernel rechazó el acceso a memoria")
	ErrSinProcesos   = errors.New("el kernel no tiene procesos en ejecución")
	ErrRespuesta     = errors.New("respuesta inesperada del kernel")
)

// Cuerpos compatibles con la API del kernel
type TrapBody struct {
	Causa string    `json:"causa"`
	ID    uint64    `json:"id"`
	Args  [3]uint64 `json:"args"`
	Stval uint64    `json:"stval"`
}

type TrapRespuesta struct {
	PIDAnterior int   `json:"pid_anterior"`
	PIDActual   int   `json:"pid_actual"`
	Ret         int64 `json:"ret"`
	Terminado   bool  `json:"terminado"`
}

type lecturaBody struct {
	Direccion uint64 `json:"direccion"`
	Tamanio   uint64 `json:"tamanio"`
}

type escrituraBody struct {
	Direccion uint64 `json:"direccion"`
	Datos     []byte `json:"datos"`
}

type accesoRespuesta struct {
	Datos     []byte        `json:"datos,omitempty"`
	Resultado TrapRespuesta `json:"resultado"`
}

type Kernel struct {
	IP     string
	Puerto int
	Log    *slog.Logger
}

func NewKernel(ip string, puerto int, logger *slog.Logger) *Kernel {
	return &Kernel{
		IP:     ip,
		Puerto: puerto,
		Log:    logger,
	}
}

// Syscall atrapa con ecall: id va en a7 y los argumentos en a0..a2.
func (k *Kernel) Syscall(ctx context.Context, id uint64, args ...uint64) (TrapRespuesta, error) {
	body := TrapBody{Causa: "UserEnvCall", ID: id}
	copy(body.Args[:], args)
	return k.EnviarTrap(ctx, body)
}

func (k *Kernel) EnviarTrap(ctx context.Context, body TrapBody) (TrapRespuesta, error) {
	var res TrapRespuesta
	status, err := k.post(ctx, "/cpu/trap", body, &res)
	if err != nil {
		return res, err
	}
	if err = k.verificarStatus(ctx, status); err != nil {
		return res, err
	}

	k.Log.DebugContext(ctx, "Trap atendido por el kernel",
		log.StringAttr("causa", body.Causa),
		log.IntAttr("pid_actual", res.PIDActual),
		log.AnyAttr("ret", res.Ret),
	)
	return res, nil
}

func (k *Kernel) LeerMemoria(ctx context.Context, direccion, tamanio uint64) ([]byte, TrapRespuesta, error) {
	var res accesoRespuesta
	status, err := k.post(ctx, "/cpu/memoria/lectura", lecturaBody{Direccion: direccion, Tamanio: tamanio}, &res)
	if err != nil {
		return nil, res.Resultado, err
	}
	if err = k.verificarStatus(ctx, status); err != nil {
		return nil, res.Resultado, err
	}
	return res.Datos, res.Resultado, nil
}

func (k *Kernel) EscribirMemoria(ctx context.Context, direccion uint64, datos []byte) (TrapRespuesta, error) {
	var res accesoRespuesta
	status, err := k.post(ctx, "/cpu/memoria/escritura", escrituraBody{Direccion: direccion, Datos: datos}, &res)
	if err != nil {
		return res.Resultado, err
	}
	return res.Resultado, k.verificarStatus(ctx, status)
}

func (k *Kernel) verificarStatus(ctx context.Context, status int) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusConflict:
		return ErrFallaDeAcceso
	case http.StatusGone:
		return ErrSinProcesos
	}
	k.Log.ErrorContext(ctx, "El kernel respondió con error",
		log.StringAttr("ip", k.IP),
		log.IntAttr("puerto", k.Puerto),
		log.IntAttr("status_code", status),
	)
	return fmt.Errorf("%w: status %d", ErrRespuesta, status)
}

// post envía body y decodifica la respuesta en res si es JSON. Devuelve el status.
func (k *Kernel) post(ctx context.Context, path string, body, res any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("http://%s:%d%s", k.IP, k.Puerto, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		k.Log.ErrorContext(ctx, "Error enviando pedido al Kernel",
			log.StringAttr("ip", k.IP),
			log.IntAttr("puerto", k.Puerto),
			log.StringAttr("path", path),
			log.ErrAttr(err),
		)
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	contenido, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if len(contenido) > 0 && json.Valid(contenido) {
		_ = json.Unmarshal(contenido, res)
	}
	return resp.StatusCode, nil
}
