package internal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var ErrInstruccionInvalida = errors.New("instrucción inválida")

// ParsearScript lee una instrucción por línea. Las líneas vacías y las que empiezan con # se ignoran.
func ParsearScript(r io.Reader) ([]Instruccion, error) {
	instrucciones := make([]Instruccion, 0)
	scanner := bufio.NewScanner(r)

	linea := 0
	for scanner.Scan() {
		linea++
		texto := strings.TrimSpace(scanner.Text())
		if texto == "" || strings.HasPrefix(texto, "#") {
			continue
		}

		campos := strings.Fields(texto)
		codigo := CodigoInstruccion(strings.ToUpper(campos[0]))
		minimo, ok := aridad[codigo]
		if !ok {
			return nil, fmt.Errorf("%w: línea %d: %q", ErrInstruccionInvalida, linea, campos[0])
		}

		args := campos[1:]
		if len(args) < minimo || (codigo != InstruccionWrite && len(args) != minimo) {
			return nil, fmt.Errorf("%w: línea %d: %s espera %d argumentos, recibió %d",
				ErrInstruccionInvalida, linea, codigo, minimo, len(args))
		}

		instrucciones = append(instrucciones, Instruccion{Linea: linea, Codigo: codigo, Args: args})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return instrucciones, nil
}

// CargarScripts lee los scripts del directorio en orden alfabético. El i-ésimo corresponde al PID i.
func CargarScripts(dir string) ([][]Instruccion, error) {
	entradas, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	nombres := make([]string, 0, len(entradas))
	for _, e := range entradas {
		if e.Type().IsRegular() {
			nombres = append(nombres, e.Name())
		}
	}
	sort.Strings(nombres)

	scripts := make([][]Instruccion, 0, len(nombres))
	for _, nombre := range nombres {
		f, err := os.Open(filepath.Join(dir, nombre))
		if err != nil {
			return nil, err
		}
		instrucciones, err := ParsearScript(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", nombre, err)
		}
		scripts = append(scripts, instrucciones)
	}
	return scripts, nil
}

// numero acepta decimal, 0x hexadecimal y negativos (que viajan en complemento a dos).
func numero(i Instruccion, pos int) (uint64, error) {
	s := i.Args[pos]
	if strings.HasPrefix(s, "-") {
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: línea %d: %q no es un número", ErrInstruccionInvalida, i.Linea, s)
		}
		return uint64(n), nil
	}

	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: línea %d: %q no es un número", ErrInstruccionInvalida, i.Linea, s)
	}
	return n, nil
}

func numeros(i Instruccion, n int) ([]uint64, error) {
	valores := make([]uint64, n)
	for pos := range n {
		v, err := numero(i, pos)
		if err != nil {
			return nil, err
		}
		valores[pos] = v
	}
	return valores, nil
}
