package mm

import "sync"

// KernelSpace es el único dueño del espacio de direcciones del kernel. Todos los procesos lo comparten
// por referencia y cada mutación pasa por su mutex.
type KernelSpace struct {
	mu sync.Mutex
	ms *MemorySet
}

func NewKernelSpace(frames *FrameAllocator, kernelFrames int) (*KernelSpace, error) {
	ms, err := NewKernelMemorySet(frames, kernelFrames)
	if err != nil {
		return nil, err
	}
	return &KernelSpace{ms: ms}, nil
}

func (k *KernelSpace) Token() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.ms.Token()
}

func (k *KernelSpace) InsertFramedArea(inicio, fin VirtAddr, perm MapPermission) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.ms.InsertFramedArea(inicio, fin, perm)
}
