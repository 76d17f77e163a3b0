package oracle

import (
	"context"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// WasmExport is the function a solver module must export. It takes the JSON
// request as (ptr, len) in linear memory and returns the JSON response packed
// as (ptr << 32) | len. The module must also export wasm_alloc(size) ptr and
// wasm_free(ptr, size).
const WasmExport = "check_consistency"

// WasmOracle runs a solver compiled to WebAssembly.
//
// The module is compiled once. Each Check instantiates a fresh instance that
// is closed when the call returns or ctx is done, so a cancelled call never
// poisons later ones.
type WasmOracle struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// LoadWasmOracle reads and compiles the module at path.
func LoadWasmOracle(ctx context.Context, path string) (*WasmOracle, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read wasm oracle %s", path)
	}
	return NewWasmOracle(ctx, wasmBytes)
}

// NewWasmOracle compiles wasmBytes.
func NewWasmOracle(ctx context.Context, wasmBytes []byte) (*WasmOracle, error) {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(err, "wasm compile")
	}
	return &WasmOracle{runtime: r, compiled: compiled}, nil
}

// Close releases all WASM resources.
func (o *WasmOracle) Close(ctx context.Context) error {
	return o.runtime.Close(ctx)
}

// Check implements Oracle.
func (o *WasmOracle) Check(ctx context.Context, req Request) (Response, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return Response{}, errors.Wrap(err, "encode oracle request")
	}

	mod, err := o.runtime.InstantiateModule(ctx, o.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return Response{}, errors.Wrap(err, "wasm instantiate")
	}
	defer mod.Close(context.WithoutCancel(ctx))

	output, err := callStringFn(ctx, mod, WasmExport, input)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if err := json.Unmarshal(output, &resp); err != nil {
		return Response{}, errors.Wrap(err, "decode oracle response")
	}
	return resp, nil
}

// callStringFn passes input through linear memory and reads back the packed
// (ptr << 32) | len result.
func callStringFn(ctx context.Context, mod api.Module, fnName string, input []byte) ([]byte, error) {
	allocFn := mod.ExportedFunction("wasm_alloc")
	freeFn := mod.ExportedFunction("wasm_free")
	targetFn := mod.ExportedFunction(fnName)
	if allocFn == nil || freeFn == nil || targetFn == nil {
		return nil, errors.Newf("wasm: missing export %q", fnName)
	}

	inputSize := uint64(len(input))
	results, err := allocFn.Call(ctx, inputSize)
	if err != nil {
		return nil, errors.Wrapf(err, "wasm alloc for %s (size=%d)", fnName, inputSize)
	}
	inputPtr := results[0]
	if inputPtr == 0 {
		return nil, errors.Newf("wasm alloc returned null for %s (size=%d)", fnName, inputSize)
	}
	if !mod.Memory().Write(uint32(inputPtr), input) {
		return nil, errors.Newf("wasm %s memory write out of range at ptr=%d size=%d", fnName, inputPtr, inputSize)
	}

	results, err = targetFn.Call(ctx, inputPtr, inputSize)
	if err != nil {
		return nil, errors.Wrapf(err, "wasm call %s", fnName)
	}
	if _, err := freeFn.Call(ctx, inputPtr, inputSize); err != nil {
		return nil, errors.Wrapf(err, "wasm %s: free input at ptr=%d", fnName, inputPtr)
	}

	packed := results[0]
	resultPtr := uint32(packed >> 32)
	resultLen := uint32(packed & 0xFFFFFFFF)
	if resultPtr == 0 || resultLen == 0 {
		return nil, errors.Newf("wasm %s returned null result (ptr=%d, len=%d)", fnName, resultPtr, resultLen)
	}

	resultBytes, ok := mod.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, errors.Newf("wasm %s memory read out of range at ptr=%d len=%d", fnName, resultPtr, resultLen)
	}
	output := make([]byte, len(resultBytes))
	copy(output, resultBytes)

	if _, err := freeFn.Call(ctx, uint64(resultPtr), uint64(resultLen)); err != nil {
		return nil, errors.Wrapf(err, "wasm %s: free result at ptr=%d", fnName, resultPtr)
	}
	return output, nil
}
