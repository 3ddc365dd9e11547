package api

import (
	"log/slog"

	"github.com/sisoputnfrba/tp-golang/kernel-vm/cpu/internal"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/pkg/kernel"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/config"
	"github.com/sisoputnfrba/tp-golang/kernel-vm/utils/log"
)

type Config struct {
	IpKernel   string `json:"ip_kernel"`
	PortKernel int    `json:"port_kernel"`
	ScriptPath string `json:"script_path"`
	LogLevel   string `json:"log_level"`
}

type Handler struct {
	Log     *slog.Logger
	Config  *Config
	Service *internal.Service
	Kernel  *kernel.Kernel
}

func NewHandler(configFile string) *Handler {
	c := config.IniciarConfiguracion(configFile, &Config{})
	if c == nil {
		panic("Error loading configuration")
	}

	// Cast the configuration to the specific type
	configStruct, ok := c.(*Config)
	if !ok {
		panic("Error casting configuration")
	}

	logger := log.BuildLogger(configStruct.LogLevel)

	scripts, err := internal.CargarScripts(configStruct.ScriptPath)
	if err != nil {
		logger.Error("Error cargando scripts",
			log.StringAttr("path", configStruct.ScriptPath),
			log.ErrAttr(err),
		)
		panic(err)
	}

	k := kernel.NewKernel(configStruct.IpKernel, configStruct.PortKernel, logger)

	return &Handler{
		Config:  configStruct,
		Log:     logger,
		Service: internal.NewService(logger, k, scripts),
		Kernel:  k,
	}
}
