// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hlsl

import (
	"fmt"
	"strings"
)

func joinParams(params []string) string {
	return strings.Join(params, ", ")
}

// writeHelpers emits the helper functions the stage needs: GLSL-style mod,
// diagonal matrices and struct constructors.
func (w *Writer) writeHelpers() {
	if w.needMod {
		// fmod truncates; mod floors.
		for n := 1; n <= 4; n++ {
			t := "float"
			if n > 1 {
				t = fmt.Sprintf("float%d", n)
			}
			w.writeLine("%s %s(%s x, %s y) {", t, ModFunction, t, t)
			w.pushIndent()
			w.writeLine("return x - y * floor(x / y);")
			w.popIndent()
			w.writeLine("}")
			w.writeLine("")
		}
		w.helperFunctions = append(w.helperFunctions, ModFunction)
	}

	for n := 2; n <= 4; n++ {
		if !w.diag[n] {
			continue
		}
		name := diagFunction(n)
		elems := make([]string, n*n)
		for i := range elems {
			elems[i] = "0.0"
			if i%(n+1) == 0 {
				elems[i] = "d"
			}
		}
		w.writeLine("float%dx%d %s(float d) {", n, n, name)
		w.pushIndent()
		w.writeLine("return float%dx%d(%s);", n, n, strings.Join(elems, ", "))
		w.popIndent()
		w.writeLine("}")
		w.writeLine("")
		w.helperFunctions = append(w.helperFunctions, name)
	}

	for _, s := range w.closure.Structs {
		name, ok := w.makeStruct[s.Name]
		if !ok {
			continue
		}
		names := w.namer.clone()
		result := names.call("result")
		params := make([]string, len(s.Fields))
		args := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			args[i] = names.call(f.Name.String())
			params[i] = w.declaration(f.Ty, args[i])
		}
		typ := w.structs[s.Name]
		w.writeLine("%s %s(%s) {", typ, name, joinParams(params))
		w.pushIndent()
		w.writeLine("%s %s;", typ, result)
		for i, f := range s.Fields {
			w.writeLine("%s.%s = %s;", result, Escape(f.Name.String()), args[i])
		}
		w.writeLine("return %s;", result)
		w.popIndent()
		w.writeLine("}")
		w.writeLine("")
		w.helperFunctions = append(w.helperFunctions, name)
	}
}
