package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/cpu/cmd/api"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

const (
	configFilePath = "./configs/config.json"
)

func main() {
	h := api.NewHandler(configFilePath)

	// "go run cpu.go [PID]": por defecto arranca por el primer proceso cargado
	pidInicial := 0
	if len(os.Args) > 1 {
		pid, err := strconv.Atoi(os.Args[1])
		if err != nil {
			h.Log.Error("PID inicial inválido", log.StringAttr("arg", os.Args[1]), log.ErrAttr(err))
			panic(err)
		}
		pidInicial = pid
	}

	h.Log.Debug("Inicializando CPU",
		log.IntAttr("scripts", len(h.Service.Scripts)),
		log.IntAttr("pid_inicial", pidInicial),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := h.Service.Ejecutar(ctx, pidInicial); err != nil {
		h.Log.Error("Error ejecutando instrucciones", log.ErrAttr(err))
		panic(err)
	}
}
