package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/task"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/internal/testutil"
)

// Pila de usuario de testutil.AppSimple.
const pilaUsuario = 0x403000

func nuevoHandlerIniciado(t *testing.T, apps int) *Handler {
	t.Helper()
	h := NewHandler("../../configs/config.json")
	for i := 0; i < apps; i++ {
		_, err := h.Kernel.CargarApp(testutil.AppSimple())
		require.NoError(t, err)
	}
	require.NoError(t, h.Kernel.Iniciar())
	return h
}

func enviar(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	if err != nil {
		t.Fatalf("Error creating request: %v", err)
	}
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandler_RecibirTrap(t *testing.T) {
	ass := assert.New(t)
	h := nuevoHandlerIniciado(t, 1)

	tests := []struct {
		name         string
		body         any
		wantedStatus int
		wantedBody   string
	}{
		{
			name:         "mmap válido",
			body:         TrapBody{Causa: "UserEnvCall", ID: 222, Args: [3]uint64{0x10000, 0x1000, 3}},
			wantedStatus: http.StatusOK,
			wantedBody:   `{"pid_anterior":0,"pid_actual":0,"ret":0,"terminado":false}`,
		},
		{
			name:         "mmap solapado",
			body:         TrapBody{Causa: "UserEnvCall", ID: 222, Args: [3]uint64{0x10000, 0x1000, 3}},
			wantedStatus: http.StatusOK,
			wantedBody:   `{"pid_anterior":0,"pid_actual":0,"ret":-1,"terminado":false}`,
		},
		{
			name:         "mmap no alineado",
			body:         TrapBody{Causa: "UserEnvCall", ID: 222, Args: [3]uint64{0x10001, 0x1000, 3}},
			wantedStatus: http.StatusOK,
			wantedBody:   `{"pid_anterior":0,"pid_actual":0,"ret":-1,"terminado":false}`,
		},
		{
			name:         "set_priority",
			body:         TrapBody{Causa: "UserEnvCall", ID: 140, Args: [3]uint64{5}},
			wantedStatus: http.StatusOK,
			wantedBody:   `{"pid_anterior":0,"pid_actual":0,"ret":-1,"terminado":false}`,
		},
		{
			name:         "causa desconocida",
			body:         TrapBody{Causa: "Breakpoint"},
			wantedStatus: http.StatusBadRequest,
			wantedBody:   `{"mensaje":"causa de trap no soportada: \"Breakpoint\""}`,
		},
		{
			name:         "json inválido",
			body:         "{causa",
			wantedStatus: http.StatusBadRequest,
			wantedBody:   `{"mensaje":"error al decodificar el trap"}`,
		},
		{
			name:         "exit",
			body:         TrapBody{Causa: "UserEnvCall", ID: 93, Args: [3]uint64{0}},
			wantedStatus: http.StatusOK,
			wantedBody:   `{"pid_anterior":0,"pid_actual":-1,"ret":0,"terminado":true}`,
		},
		{
			name:         "sin procesos",
			body:         TrapBody{Causa: "UserEnvCall", ID: 124},
			wantedStatus: http.StatusGone,
			wantedBody:   `{"mensaje":"no hay proceso en ejecución"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := enviar(t, h, "POST", "/cpu/trap", tt.body)

			ass.Equal(tt.wantedStatus, rr.Code)
			ass.JSONEq(tt.wantedBody, rr.Body.String())
		})
	}
}

func TestHandler_RecibirTrap_NoIniciado(t *testing.T) {
	h := NewHandler("../../configs/config.json")

	rr := enviar(t, h, "POST", "/cpu/trap", TrapBody{Causa: "SupervisorTimer"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandler_Memoria(t *testing.T) {
	ass := assert.New(t)
	h := nuevoHandlerIniciado(t, 2)

	rr := enviar(t, h, "POST", "/cpu/memoria/escritura", EscrituraBody{Direccion: pilaUsuario, Datos: []byte("hola")})
	ass.Equal(http.StatusOK, rr.Code)

	rr = enviar(t, h, "POST", "/cpu/memoria/lectura", LecturaBody{Direccion: pilaUsuario, Tamanio: 4})
	require.Equal(t, http.StatusOK, rr.Code)
	var acceso AccesoRespuesta
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &acceso))
	ass.Equal([]byte("hola"), acceso.Datos)
	ass.Equal(0, acceso.Resultado.PIDActual)

	// escribir sobre el código (R|X) es un store page fault
	rr = enviar(t, h, "POST", "/cpu/memoria/escritura", EscrituraBody{Direccion: 0x400000, Datos: []byte{0}})
	ass.Equal(http.StatusConflict, rr.Code)
	ass.JSONEq(`{"resultado":{"pid_anterior":0,"pid_actual":1,"ret":0,"terminado":true}}`, rr.Body.String())

	rr = enviar(t, h, "POST", "/cpu/memoria/lectura", LecturaBody{Direccion: 0x90000, Tamanio: 4})
	ass.Equal(http.StatusConflict, rr.Code)
	ass.JSONEq(`{"resultado":{"pid_anterior":1,"pid_actual":-1,"ret":0,"terminado":true}}`, rr.Body.String())

	rr = enviar(t, h, "POST", "/cpu/memoria/lectura", "no json")
	ass.Equal(http.StatusBadRequest, rr.Code)
}

func TestHandler_Procesos(t *testing.T) {
	ass := assert.New(t)
	h := nuevoHandlerIniciado(t, 2)

	rr := enviar(t, h, "POST", "/cpu/trap", TrapBody{Causa: "UserEnvCall", ID: 124})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = enviar(t, h, "GET", "/kernel/procesos", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var procesos []task.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &procesos))
	require.Len(t, procesos, 2)
	ass.Equal("READY", procesos[0].Estado)
	ass.Equal(map[uint64]uint32{124: 1}, procesos[0].SyscallTimes)
	ass.True(procesos[1].Ejecutando)

	rr = enviar(t, h, "GET", "/kernel/procesos/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var proceso task.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &proceso))
	ass.Equal(1, proceso.PID)
	ass.Equal("RUNNING", proceso.Estado)

	rr = enviar(t, h, "GET", "/kernel/procesos/9", nil)
	ass.Equal(http.StatusNotFound, rr.Code)
	rr = enviar(t, h, "GET", "/kernel/procesos/abc", nil)
	ass.Equal(http.StatusBadRequest, rr.Code)
}

func TestHandler_FramesLibres(t *testing.T) {
	h := nuevoHandlerIniciado(t, 1)
	antes := h.Kernel.FramesLibres()

	rr := enviar(t, h, "POST", "/cpu/trap", TrapBody{Causa: "UserEnvCall", ID: 222, Args: [3]uint64{0x10000, 0x2000, 3}})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = enviar(t, h, "GET", "/kernel/frames-libres", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	// dos páginas más la tabla de último nivel para 0x10000
	assert.Equal(t, antes-3, body["frames_libres"])
}
