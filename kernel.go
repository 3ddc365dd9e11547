package main

import (
	"fmt"
	"net/http"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/cmd/api"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

const (
	configFilePath = "./configs/config.json"
)

func main() {
	h := api.NewHandler(configFilePath)

	cargadas, err := h.Kernel.CargarApps(h.Config.AppsPath)
	if err != nil {
		h.Log.Error("Error cargando aplicaciones",
			log.StringAttr("apps_path", h.Config.AppsPath),
			log.ErrAttr(err),
		)
		panic(err)
	}
	h.Log.Info(fmt.Sprintf("[kernel] num_app = %d", cargadas))

	if err = h.Kernel.Iniciar(); err != nil {
		h.Log.Error("Error iniciando el kernel", log.ErrAttr(err))
		panic(err)
	}

	kernelAddress := fmt.Sprintf("%s:%d", h.Config.IpKernel, h.Config.PortKernel)
	if err = http.ListenAndServe(kernelAddress, h.Router()); err != nil {
		h.Log.Error("Error starting server", log.ErrAttr(err))
		panic(err)
	}
}
